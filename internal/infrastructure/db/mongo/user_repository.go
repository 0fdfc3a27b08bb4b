package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

const (
	collectionUsers = "users"

	indexUsername = "uniq_username"
	indexEmail    = "uniq_email"
	indexAuthID   = "uniq_auth_id"
)

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash,omitempty"`
	AuthID       string             `bson:"auth_id,omitempty"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		AuthID:       d.AuthID,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// UserRepository implements ports.UserRepository. Username and email
// uniqueness is enforced by unique indexes.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		AuthID:       u.AuthID,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return userWriteError("insert user", err)
	}
	u.ID = doc.ID.Hex()
	return nil
}

// userWriteError maps a unique index violation to the field that caused it.
func userWriteError(op string, err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return storeError(op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexEmail):
		return domain.ErrEmailTaken
	case strings.Contains(msg, indexAuthID):
		return domain.ErrConflict
	default:
		return domain.ErrUsernameTaken
	}
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError(op, err)
	}
	u := doc.toDomain()
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "find user", bson.M{"_id": oid})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "find user by username", bson.M{"username": username})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "find user by email", bson.M{"email": email})
}

func userFilter(q ports.UserQuery) bson.M {
	if q.Search == "" {
		return bson.M{}
	}
	rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"username": rx},
		bson.M{"email": rx},
	}}
}

// List returns one page of users ordered by username.
func (r *UserRepository) List(ctx context.Context, q ports.UserQuery) ([]domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := userFilter(q)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeError("count users", err)
	}
	if total == 0 || q.Skip >= total {
		return []domain.User{}, total, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetSkip(q.Skip).
		SetLimit(q.Limit)

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, storeError("list users", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, storeError("decode users", err)
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, total, nil
}

// Refs returns id and username of every user, ordered by username.
func (r *UserRepository) Refs(ctx context.Context) ([]domain.UserRef, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetProjection(bson.M{"username": 1})

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeError("list user refs", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError("decode user refs", err)
	}
	refs := make([]domain.UserRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, domain.UserRef{ID: d.ID.Hex(), Username: d.Username})
	}
	return refs, nil
}

func (r *UserRepository) RefsByIDs(ctx context.Context, ids []string) (map[string]domain.UserRef, error) {
	filter, ok := refsByIDsFilter(ids)
	if !ok {
		return map[string]domain.UserRef{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, options.Find().SetProjection(bson.M{"username": 1}))
	if err != nil {
		return nil, storeError("find user refs", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError("decode user refs", err)
	}
	refs := make(map[string]domain.UserRef, len(docs))
	for _, d := range docs {
		refs[d.ID.Hex()] = domain.UserRef{ID: d.ID.Hex(), Username: d.Username}
	}
	return refs, nil
}

// refsByIDsFilter builds an $in over the distinct well-formed ids. ok is
// false when nothing could match.
func refsByIDsFilter(ids []string) (bson.M, bool) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		oid, ok := objectID(id)
		if !ok {
			continue
		}
		if _, dup := seen[oid]; dup {
			continue
		}
		seen[oid] = struct{}{}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return nil, false
	}
	return bson.M{"_id": bson.M{"$in": oids}}, true
}

func (r *UserRepository) Update(ctx context.Context, id string, u ports.UserUpdate) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	set := bson.M{"updated_at": u.UpdatedAt}
	if u.Username != nil {
		set["username"] = *u.Username
	}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.Role != nil {
		set["role"] = string(*u.Role)
	}
	if u.PasswordHash != nil {
		set["password_hash"] = *u.PasswordHash
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, userWriteError("update user", err)
	}
	updated := doc.toDomain()
	return &updated, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storeError("delete user", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Ping reports whether the store is reachable.
func (r *UserRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the unique indexes on username, email and auth_id.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUsername),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEmail),
		},
		{
			Keys:    bson.D{{Key: "auth_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName(indexAuthID),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
