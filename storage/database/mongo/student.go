package mongodb

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
)

var studentSortFields = map[string]string{
	"rollNo":    "rollno",
	"name":      "name",
	"createdAt": "createdat",
}

type studentRepository struct {
	col *mongo.Collection
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{col: db.col(colStudents)}
}

func (repo *studentRepository) find(ctx context.Context, filter interface{}, opts ...options.Lister[options.FindOptions]) ([]student.Student, error) {
	cur, err := repo.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, storeErr(err, "finding students")
	}
	var students []student.Student
	if err := cur.All(ctx, &students); err != nil {
		return nil, storeErr(err, "decoding students")
	}
	return students, nil
}

func (repo *studentRepository) FindByRollNumber(ctx context.Context, rollNo int) (student.Student, error) {
	var s student.Student
	err := repo.col.FindOne(ctx, bson.M{"rollno": rollNo}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return student.Student{}, student.ErrNotFound
	}
	if err != nil {
		return student.Student{}, storeErr(err, "finding student")
	}
	return s, nil
}

func (repo *studentRepository) FindByRollNumbers(ctx context.Context, rollNos []int) ([]student.Student, error) {
	if len(rollNos) == 0 {
		return nil, nil
	}
	return repo.find(ctx, bson.M{"rollno": bson.M{"$in": rollNos}})
}

func (repo *studentRepository) FindByParentEmail(ctx context.Context, email string) ([]student.Student, error) {
	if email == "" {
		return nil, nil
	}
	return repo.find(ctx, bson.M{"parent.email": email}, options.Find().SetSort(sortBy("rollno", true)))
}

func (repo *studentRepository) Exists(ctx context.Context, rollNo int) (bool, error) {
	n, err := repo.col.CountDocuments(ctx, bson.M{"rollno": rollNo}, options.Count().SetLimit(1))
	if err != nil {
		return false, storeErr(err, "checking student")
	}
	return n > 0, nil
}

func (repo *studentRepository) ExistingRollNumbers(ctx context.Context, rollNos []int) ([]int, error) {
	if len(rollNos) == 0 {
		return nil, nil
	}
	cur, err := repo.col.Find(
		ctx,
		bson.M{"rollno": bson.M{"$in": rollNos}},
		options.Find().SetProjection(bson.M{"rollno": 1}),
	)
	if err != nil {
		return nil, storeErr(err, "finding roll numbers")
	}
	var docs []struct {
		RollNo int `bson:"rollno"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, "decoding roll numbers")
	}
	taken := make([]int, 0, len(docs))
	for _, d := range docs {
		taken = append(taken, d.RollNo)
	}
	return taken, nil
}

func (repo *studentRepository) Insert(ctx context.Context, s student.Student) error {
	if _, err := repo.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return student.ErrRollNoExists
		}
		return storeErr(err, "inserting student")
	}
	return nil
}

func (repo *studentRepository) InsertMany(ctx context.Context, students []student.Student) error {
	if len(students) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(students))
	for _, s := range students {
		docs = append(docs, s)
	}
	if _, err := repo.col.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return student.ErrRollNoExists
		}
		return storeErr(err, "inserting students")
	}
	return nil
}

func (repo *studentRepository) Save(ctx context.Context, s student.Student) error {
	res, err := repo.col.ReplaceOne(ctx, bson.M{"rollno": s.RollNo}, s)
	if err != nil {
		return storeErr(err, "saving student")
	}
	if res.MatchedCount == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo *studentRepository) SetFeeRef(ctx context.Context, rollNo int, feeID string) error {
	res, err := repo.col.UpdateOne(ctx, bson.M{"rollno": rollNo}, bson.M{"$set": bson.M{"feeid": feeID}})
	if err != nil {
		return storeErr(err, "linking fee record")
	}
	if res.MatchedCount == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo *studentRepository) AddKits(ctx context.Context, rollNos []int, kitIDs []string) ([]int, error) {
	matched, err := repo.ExistingRollNumbers(ctx, rollNos)
	if err != nil || len(matched) == 0 {
		return matched, err
	}
	_, err = repo.col.UpdateMany(
		ctx,
		bson.M{"rollno": bson.M{"$in": matched}},
		bson.M{"$addToSet": bson.M{"kits": bson.M{"$each": kitIDs}}},
	)
	if err != nil {
		return nil, storeErr(err, "adding kits")
	}
	return matched, nil
}

func studentFilter(qf student.QueryFilter) bson.M {
	filter := bson.M{}
	if qf.Batch != "" {
		filter["batch"] = qf.Batch
	}
	if qf.Class != "" {
		filter["class"] = qf.Class
	}
	if qf.Search != "" {
		pattern := regexp.QuoteMeta(qf.Search)
		rx := bson.Regex{Pattern: pattern, Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"email": rx},
			bson.M{"$expr": bson.M{"$regexMatch": bson.M{"input": bson.M{"$toString": "$rollno"}, "regex": pattern}}},
		}
	}
	return filter
}

func (repo *studentRepository) Query(
	ctx context.Context,
	qf student.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]student.Student, int64, error) {
	filter := studentFilter(qf)
	total, err := repo.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, "counting students")
	}

	sort := bson.D{}
	for _, ord := range ordering {
		if f, ok := studentSortFields[ord.Field]; ok {
			sort = append(sort, sortBy(f, ord.Ascending)...)
		}
	}
	sort = append(sort, bson.E{Key: "rollno", Value: 1})

	opts := options.Find().SetSort(sort)
	if page.PageSize > 0 {
		opts.SetSkip(int64(page.Offset())).SetLimit(int64(page.PageSize))
	}
	students, err := repo.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (repo *studentRepository) QueryRange(ctx context.Context, from, to int) ([]student.Student, error) {
	return repo.find(
		ctx,
		bson.M{"rollno": bson.M{"$gte": from, "$lte": to}},
		options.Find().SetSort(sortBy("rollno", true)),
	)
}

func (repo *studentRepository) Count(ctx context.Context) (int64, error) {
	n, err := repo.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storeErr(err, "counting students")
	}
	return n, nil
}

func (repo *studentRepository) CountByBatch(ctx context.Context) ([]student.BatchCount, error) {
	cur, err := repo.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$batch", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return nil, storeErr(err, "counting students by batch")
	}
	var docs []struct {
		Batch string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, "decoding batch counts")
	}
	counts := make([]student.BatchCount, 0, len(docs))
	for _, d := range docs {
		counts = append(counts, student.BatchCount{Batch: d.Batch, Count: d.Count})
	}
	return counts, nil
}
