package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/testscore"
)

type attendanceRepository struct {
	col *mongo.Collection
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{col: db.col(colAttendance)}
}

func (repo *attendanceRepository) InsertMany(ctx context.Context, records []attendance.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, r)
	}
	_, err := repo.col.InsertMany(ctx, docs)
	return storeErr(err, "inserting attendance")
}

func (repo *attendanceRepository) ListByRollNumber(ctx context.Context, rollNo int, from, to time.Time) ([]attendance.Record, error) {
	filter := bson.M{"rollno": rollNo}
	dates := bson.M{}
	if !from.IsZero() {
		dates["$gte"] = from
	}
	if !to.IsZero() {
		dates["$lte"] = to
	}
	if len(dates) > 0 {
		filter["date"] = dates
	}
	cur, err := repo.col.Find(ctx, filter, options.Find().SetSort(sortBy("date", true)))
	if err != nil {
		return nil, storeErr(err, "finding attendance")
	}
	var records []attendance.Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, storeErr(err, "decoding attendance")
	}
	return records, nil
}

func (repo *attendanceRepository) CountByDate(ctx context.Context, limit int) ([]attendance.DateCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$date"}},
			"present": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$presentstatus", attendance.StatusPresent}}, 1, 0},
			}},
			"absent": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$presentstatus", attendance.StatusPresent}}, 0, 1},
			}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": -1}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	cur, err := repo.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr(err, "counting attendance")
	}
	var docs []struct {
		Date    string `bson:"_id"`
		Present int64  `bson:"present"`
		Absent  int64  `bson:"absent"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, "decoding attendance counts")
	}
	counts := make([]attendance.DateCount, 0, len(docs))
	for _, d := range docs {
		counts = append(counts, attendance.DateCount{Date: d.Date, Present: d.Present, Absent: d.Absent})
	}
	return counts, nil
}

type scoreRepository struct {
	col *mongo.Collection
}

func NewScoreRepository(db *DB) testscore.Repository {
	return &scoreRepository{col: db.col(colScores)}
}

func (repo *scoreRepository) NameExists(ctx context.Context, name string) (bool, error) {
	n, err := repo.col.CountDocuments(ctx, bson.M{"name": name}, options.Count().SetLimit(1))
	if err != nil {
		return false, storeErr(err, "checking test name")
	}
	return n > 0, nil
}

func (repo *scoreRepository) InsertMany(ctx context.Context, scores []testscore.Score) error {
	if len(scores) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(scores))
	for _, s := range scores {
		docs = append(docs, s)
	}
	_, err := repo.col.InsertMany(ctx, docs)
	return storeErr(err, "inserting test scores")
}

func (repo *scoreRepository) ListByRollNumber(ctx context.Context, rollNo int) ([]testscore.Score, error) {
	cur, err := repo.col.Find(ctx, bson.M{"rollnumber": rollNo}, options.Find().SetSort(sortBy("date", false)))
	if err != nil {
		return nil, storeErr(err, "finding test scores")
	}
	var scores []testscore.Score
	if err := cur.All(ctx, &scores); err != nil {
		return nil, storeErr(err, "decoding test scores")
	}
	return scores, nil
}

func (repo *scoreRepository) ListTests(ctx context.Context) ([]testscore.Test, error) {
	cur, err := repo.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      "$name",
			"date":     bson.M{"$first": "$date"},
			"students": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, storeErr(err, "listing tests")
	}
	var docs []struct {
		Name     string    `bson:"_id"`
		Date     time.Time `bson:"date"`
		Students int64     `bson:"students"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, "decoding tests")
	}
	tests := make([]testscore.Test, 0, len(docs))
	for _, d := range docs {
		tests = append(tests, testscore.Test{Name: d.Name, Date: d.Date, Students: d.Students})
	}
	return tests, nil
}
