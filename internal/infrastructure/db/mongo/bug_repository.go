package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

const collectionBugs = "bugs"

type commentDocument struct {
	AuthorID  primitive.ObjectID `bson:"author_id"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

type bugDocument struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty"`
	Title            string              `bson:"title"`
	Description      string              `bson:"description"`
	Status           string              `bson:"status"`
	Priority         string              `bson:"priority"`
	Tags             []string            `bson:"tags"`
	StepsToReproduce string              `bson:"steps_to_reproduce,omitempty"`
	ExpectedBehavior string              `bson:"expected_behavior,omitempty"`
	Environment      string              `bson:"environment,omitempty"`
	ReporterID       primitive.ObjectID  `bson:"reporter_id"`
	AssigneeID       *primitive.ObjectID `bson:"assignee_id,omitempty"`
	CreatedAt        time.Time           `bson:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at"`
	Comments         []commentDocument   `bson:"comments,omitempty"`
}

func toBugDocument(b *domain.Bug) (bugDocument, error) {
	reporter, ok := objectID(b.ReporterID)
	if !ok {
		return bugDocument{}, domain.ErrUserNotFound
	}
	doc := bugDocument{
		Title:            b.Title,
		Description:      b.Description,
		Status:           string(b.Status),
		Priority:         string(b.Priority),
		Tags:             b.Tags,
		StepsToReproduce: b.StepsToReproduce,
		ExpectedBehavior: b.ExpectedBehavior,
		Environment:      b.Environment,
		ReporterID:       reporter,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Comments:         make([]commentDocument, 0, len(b.Comments)),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if b.IsAssigned() {
		assignee, ok := objectID(*b.AssigneeID)
		if !ok {
			return bugDocument{}, domain.ErrUserNotFound
		}
		doc.AssigneeID = &assignee
	}
	for _, c := range b.Comments {
		cd, err := toCommentDocument(c)
		if err != nil {
			return bugDocument{}, err
		}
		doc.Comments = append(doc.Comments, cd)
	}
	return doc, nil
}

func toCommentDocument(c domain.Comment) (commentDocument, error) {
	author, ok := objectID(c.AuthorID)
	if !ok {
		return commentDocument{}, domain.ErrUserNotFound
	}
	return commentDocument{AuthorID: author, Content: c.Content, CreatedAt: c.CreatedAt}, nil
}

func (d bugDocument) toDomain() domain.Bug {
	b := domain.Bug{
		ID:               d.ID.Hex(),
		Title:            d.Title,
		Description:      d.Description,
		Status:           domain.Status(d.Status),
		Priority:         domain.Priority(d.Priority),
		Tags:             d.Tags,
		StepsToReproduce: d.StepsToReproduce,
		ExpectedBehavior: d.ExpectedBehavior,
		Environment:      d.Environment,
		ReporterID:       d.ReporterID.Hex(),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if d.AssigneeID != nil {
		id := d.AssigneeID.Hex()
		b.AssigneeID = &id
	}
	if d.Comments != nil {
		b.Comments = make([]domain.Comment, 0, len(d.Comments))
		for _, c := range d.Comments {
			b.Comments = append(b.Comments, domain.Comment{
				AuthorID:  c.AuthorID.Hex(),
				Content:   c.Content,
				CreatedAt: c.CreatedAt.UTC(),
			})
		}
	}
	return b
}

// BugRepository implements ports.BugRepository on a single collection. Comments
// are embedded, so every mutation touches exactly one document.
type BugRepository struct {
	col *mongo.Collection
}

func NewBugRepository(db *mongo.Database) *BugRepository {
	return &BugRepository{col: db.Collection(collectionBugs)}
}

// Create inserts a new bug document and assigns its generated id.
func (r *BugRepository) Create(ctx context.Context, b *domain.Bug) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toBugDocument(b)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return storeError("insert bug", err)
	}
	b.ID = doc.ID.Hex()
	return nil
}

func (r *BugRepository) FindByID(ctx context.Context, id string) (*domain.Bug, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrBugNotFound
	}

	var doc bugDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBugNotFound
		}
		return nil, storeError("find bug", err)
	}
	b := doc.toDomain()
	if b.Comments == nil {
		b.Comments = []domain.Comment{}
	}
	return &b, nil
}

// Update applies u in a single findAndModify and returns the post-image.
func (r *BugRepository) Update(ctx context.Context, id string, u ports.BugUpdate) (*domain.Bug, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrBugNotFound
	}
	update, err := bugUpdateDocument(u)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bugDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBugNotFound
		}
		return nil, storeError("update bug", err)
	}
	b := doc.toDomain()
	if b.Comments == nil {
		b.Comments = []domain.Comment{}
	}
	return &b, nil
}

// bugUpdateDocument builds the update operators for u. updated_at only moves
// forward ($max) so it can never fall behind created_at.
func bugUpdateDocument(u ports.BugUpdate) (bson.M, error) {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.Priority != nil {
		set["priority"] = string(*u.Priority)
	}
	if u.Tags != nil {
		tags := *u.Tags
		if tags == nil {
			tags = []string{}
		}
		set["tags"] = tags
	}
	if u.StepsToReproduce != nil {
		set["steps_to_reproduce"] = *u.StepsToReproduce
	}
	if u.ExpectedBehavior != nil {
		set["expected_behavior"] = *u.ExpectedBehavior
	}
	if u.Environment != nil {
		set["environment"] = *u.Environment
	}

	update := bson.M{"$max": bson.M{"updated_at": u.UpdatedAt}}
	switch {
	case u.ClearAssignee:
		update["$unset"] = bson.M{"assignee_id": ""}
	case u.AssigneeID != nil:
		oid, ok := objectID(*u.AssigneeID)
		if !ok {
			return nil, domain.ErrUserNotFound
		}
		set["assignee_id"] = oid
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update, nil
}

// Delete removes the bug document; its comments go with it.
func (r *BugRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(id)
	if !ok {
		return domain.ErrBugNotFound
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storeError("delete bug", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrBugNotFound
	}
	return nil
}

// AppendComment atomically pushes c and bumps updated_at.
func (r *BugRepository) AppendComment(ctx context.Context, id string, c domain.Comment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(id)
	if !ok {
		return domain.ErrBugNotFound
	}
	doc, err := toCommentDocument(c)
	if err != nil {
		return err
	}

	update := bson.M{
		"$push": bson.M{"comments": doc},
		"$max":  bson.M{"updated_at": c.CreatedAt},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return storeError("append comment", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrBugNotFound
	}
	return nil
}

// bugFilter translates a planned query into a Mongo filter. ok is false when
// the query references an id that cannot exist, i.e. it matches nothing.
func bugFilter(q ports.BugQuery) (bson.M, bool) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}
	if q.Priority != "" {
		filter["priority"] = string(q.Priority)
	}
	switch {
	case q.Unassigned:
		// matches both a missing field and an explicit null
		filter["assignee_id"] = nil
	case q.AssigneeID != "":
		oid, ok := objectID(q.AssigneeID)
		if !ok {
			return nil, false
		}
		filter["assignee_id"] = oid
	}
	if q.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
		}
	}
	return filter, true
}

// List returns one page of bugs without their comments, newest first with
// ties broken by id.
func (r *BugRepository) List(ctx context.Context, q ports.BugQuery) ([]domain.Bug, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter, ok := bugFilter(q)
	if !ok {
		return []domain.Bug{}, 0, nil
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeError("count bugs", err)
	}
	if total == 0 || q.Skip >= total {
		return []domain.Bug{}, total, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(q.Skip).
		SetLimit(q.Limit).
		SetProjection(bson.M{"comments": 0})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, storeError("list bugs", err)
	}
	defer cur.Close(ctx)

	var docs []bugDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, storeError("decode bugs", err)
	}

	items := make([]domain.Bug, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toDomain())
	}
	return items, total, nil
}

type countBucket struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// Stats counts bugs by status and by priority in one aggregation.
func (r *BugRepository) Stats(ctx context.Context) (*domain.BugStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	group := func(field string) bson.A {
		return bson.A{bson.M{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"by_status":   group("status"),
			"by_priority": group("priority"),
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeError("bug stats", err)
	}
	defer cur.Close(ctx)

	var facets []struct {
		ByStatus   []countBucket `bson:"by_status"`
		ByPriority []countBucket `bson:"by_priority"`
	}
	if err := cur.All(ctx, &facets); err != nil {
		return nil, storeError("decode bug stats", err)
	}

	stats := domain.NewBugStats()
	if len(facets) == 0 {
		return stats, nil
	}
	for _, b := range facets[0].ByStatus {
		stats.ByStatus[domain.Status(b.Key)] += b.Count
		stats.Total += b.Count
	}
	for _, b := range facets[0].ByPriority {
		stats.ByPriority[domain.Priority(b.Key)] += b.Count
	}
	return stats, nil
}

func (r *BugRepository) CountByReporter(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(userID)
	if !ok {
		return 0, nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"reporter_id": oid})
	if err != nil {
		return 0, storeError("count reported bugs", err)
	}
	return n, nil
}

func (r *BugRepository) DeleteByReporter(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(userID)
	if !ok {
		return 0, nil
	}
	res, err := r.col.DeleteMany(ctx, bson.M{"reporter_id": oid})
	if err != nil {
		return 0, storeError("delete reported bugs", err)
	}
	return res.DeletedCount, nil
}

// UnassignUser removes userID as assignee from every bug that has it.
func (r *BugRepository) UnassignUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, ok := objectID(userID)
	if !ok {
		return 0, nil
	}
	update := bson.M{
		"$unset": bson.M{"assignee_id": ""},
		"$max":   bson.M{"updated_at": at},
	}
	res, err := r.col.UpdateMany(ctx, bson.M{"assignee_id": oid}, update)
	if err != nil {
		return 0, storeError("unassign user", err)
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes creates the indexes backing the filters and the list order.
func (r *BugRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "assignee_id", Value: 1}}},
		{Keys: bson.D{{Key: "reporter_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
