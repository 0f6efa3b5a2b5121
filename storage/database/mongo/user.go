package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{col: db.col(colUsers)}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	check := func(field, value string, taken error) error {
		if value == "" {
			return nil
		}
		filter := bson.M{field: value}
		if len(excludedIDs) > 0 {
			filter["id"] = bson.M{"$nin": excludedIDs}
		}
		n, err := repo.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return storeErr(err, "checking "+field)
		}
		if n > 0 {
			return taken
		}
		return nil
	}
	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) Create(ctx context.Context, usr user.User) error {
	if _, err := repo.col.InsertOne(ctx, usr); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrEmailExists
		}
		return storeErr(err, "inserting user")
	}
	return nil
}

func (repo *userRepository) QueryAll(ctx context.Context) ([]user.User, error) {
	cur, err := repo.col.Find(ctx, bson.M{}, options.Find().SetSort(sortBy("createdat", false)))
	if err != nil {
		return nil, storeErr(err, "finding users")
	}
	var users []user.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, storeErr(err, "decoding users")
	}
	return users, nil
}

func (repo *userRepository) getBy(ctx context.Context, filter bson.M) (user.User, error) {
	var usr user.User
	err := repo.col.FindOne(ctx, filter).Decode(&usr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, storeErr(err, "finding user")
	}
	return usr, nil
}

func (repo *userRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, bson.M{"id": id})
}

func (repo *userRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, bson.M{"email": email})
}

func (repo *userRepository) GetByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(ctx, bson.M{"$or": bson.A{bson.M{"username": username}, bson.M{"email": username}}})
}

func (repo *userRepository) Update(ctx context.Context, usr user.User) error {
	res, err := repo.col.ReplaceOne(ctx, bson.M{"id": usr.ID}, usr)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrEmailExists
		}
		return storeErr(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

type otpRepository struct {
	col *mongo.Collection
}

func NewOTPRepository(db *DB) user.OTPRepository {
	return &otpRepository{col: db.col(colOTPs)}
}

func (repo *otpRepository) Insert(ctx context.Context, otp user.OTP) error {
	_, err := repo.col.InsertOne(ctx, otp)
	return storeErr(err, "inserting otp")
}

func (repo *otpRepository) InvalidateAll(ctx context.Context, email string) error {
	_, err := repo.col.UpdateMany(ctx, bson.M{"email": email, "used": false}, bson.M{"$set": bson.M{"used": true}})
	return storeErr(err, "invalidating otps")
}

func (repo *otpRepository) Consume(ctx context.Context, email string, codeHash []byte, now time.Time) error {
	res, err := repo.col.UpdateOne(
		ctx,
		bson.M{
			"email":     email,
			"codehash":  codeHash,
			"used":      false,
			"expiresat": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return storeErr(err, "consuming otp")
	}
	if res.ModifiedCount == 0 {
		return user.ErrInvalidOTP
	}
	return nil
}
