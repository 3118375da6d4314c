package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marvinalivio/p4-backend/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usernameIndexName = "username_unique"

// userDocument is the stored shape of a user: the domain fields inlined next
// to the ObjectID primary key.
type userDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	types.User `bson:",inline"`
}

func (d userDocument) toUser() types.User {
	user := d.User
	user.ID = d.ID.Hex()
	user.Normalize()
	return user
}

// MongoUserRepository stores users as documents in a MongoDB collection.
type MongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoUserRepository(coll *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{coll: coll, now: time.Now}
}

// EnsureIndexes creates the unique username index. It is safe to call on
// every startup.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(usernameIndexName),
	})
	if err != nil {
		return fmt.Errorf("create username index: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Normalize()

	doc := userDocument{ID: primitive.NewObjectID(), User: user}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicateKey
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *MongoUserRepository) Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, ErrNotFound
	}
	if update.IsEmpty() {
		return r.findOne(ctx, bson.M{"_id": oid})
	}

	set := bson.M{"updated_at": r.now().UTC().Truncate(time.Millisecond)}
	if update.Profile != nil {
		set["profile"] = nonNil(*update.Profile)
	}
	if update.Education != nil {
		set["education"] = nonNil(*update.Education)
	}
	if update.WorkExperience != nil {
		set["work_experience"] = nonNil(*update.WorkExperience)
	}
	if update.Skills != nil {
		set["skills"] = nonNil(*update.Skills)
	}
	if update.Portfolio != nil {
		set["portfolio"] = nonNil(*update.Portfolio)
	}
	if update.Deleted != nil {
		set["deleted"] = *update.Deleted
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *MongoUserRepository) ListActive(ctx context.Context) ([]types.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"deleted": false})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []types.User{}
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.toUser())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}
