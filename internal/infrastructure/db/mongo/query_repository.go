package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

const collectionQueries = "queries"

type QueryRepository struct {
	col *mongo.Collection
}

func NewQueryRepository(db *mongo.Database) *QueryRepository {
	return &QueryRepository{col: db.Collection(collectionQueries)}
}

type fileDocument struct {
	Filename string `bson:"filename"`
	Path     string `bson:"path"`
	Key      string `bson:"key"`
}

type responseDocument struct {
	UserID    string        `bson:"user_id"`
	UserName  string        `bson:"user_name"`
	UserRole  string        `bson:"user_role"`
	Message   string        `bson:"message"`
	File      *fileDocument `bson:"file,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
}

type queryDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Title        string             `bson:"title"`
	Description  string             `bson:"description"`
	Status       string             `bson:"status"`
	CustomerID   string             `bson:"customer_id"`
	ConsultantID string             `bson:"consultant_id,omitempty"`
	Attachment   *fileDocument      `bson:"attachment,omitempty"`
	Responses    []responseDocument `bson:"responses"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func toFileDocument(f *domain.FileRef) *fileDocument {
	if f == nil {
		return nil
	}
	return &fileDocument{Filename: f.Filename, Path: f.Path, Key: f.Key}
}

func (f *fileDocument) toDomain() *domain.FileRef {
	if f == nil {
		return nil
	}
	return &domain.FileRef{Filename: f.Filename, Path: f.Path, Key: f.Key}
}

func toResponseDocument(r domain.Response) responseDocument {
	return responseDocument{
		UserID:    r.UserID,
		UserName:  r.UserName,
		UserRole:  r.UserRole,
		Message:   r.Message,
		File:      toFileDocument(r.File),
		CreatedAt: r.CreatedAt,
	}
}

func toQueryDocument(q *domain.Query) queryDocument {
	responses := make([]responseDocument, 0, len(q.Responses))
	for _, r := range q.Responses {
		responses = append(responses, toResponseDocument(r))
	}
	return queryDocument{
		Title:        q.Title,
		Description:  q.Description,
		Status:       string(q.Status),
		CustomerID:   q.CustomerID,
		ConsultantID: q.ConsultantID,
		Attachment:   toFileDocument(q.Attachment),
		Responses:    responses,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

func (d *queryDocument) toDomain() *domain.Query {
	responses := make([]domain.Response, 0, len(d.Responses))
	for _, r := range d.Responses {
		responses = append(responses, domain.Response{
			UserID:    r.UserID,
			UserName:  r.UserName,
			UserRole:  r.UserRole,
			Message:   r.Message,
			File:      r.File.toDomain(),
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return &domain.Query{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		Description:  d.Description,
		Status:       domain.QueryStatus(d.Status),
		CustomerID:   d.CustomerID,
		ConsultantID: d.ConsultantID,
		Attachment:   d.Attachment.toDomain(),
		Responses:    responses,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// Create inserts a new query document.
func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toQueryDocument(q)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert query: %w", err)
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *QueryRepository) FindByID(ctx context.Context, id string) (*domain.Query, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc queryDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("find query: %w", err)
	}
	return doc.toDomain(), nil
}

// listFilter translates a QueryFilter into a Mongo filter document.
func listFilter(f ports.QueryFilter) bson.M {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.ConsultantID != "" {
		filter["consultant_id"] = f.ConsultantID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

// List returns a page of queries, newest first, and the total count.
func (r *QueryRepository) List(ctx context.Context, f ports.QueryFilter) ([]*domain.Query, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := listFilter(f)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count queries: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list queries: %w", err)
	}
	defer cur.Close(ctx)

	var docs []queryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode queries: %w", err)
	}

	items := make([]*domain.Query, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toDomain())
	}
	return items, total, nil
}

// transitionFilter matches the query only while its status may move to next.
func transitionFilter(oid primitive.ObjectID, next domain.QueryStatus) bson.M {
	from := domain.SourcesFor(next)
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	return bson.M{"_id": oid, "status": bson.M{"$in": statuses}}
}

func (r *QueryRepository) Assign(ctx context.Context, id, consultantID string) (*domain.Query, error) {
	return r.transition(ctx, id, domain.StatusAssigned, bson.M{"consultant_id": consultantID})
}

func (r *QueryRepository) Resolve(ctx context.Context, id string) (*domain.Query, error) {
	return r.transition(ctx, id, domain.StatusResolved, bson.M{})
}

// transition applies a conditional status update. When nothing matches it
// distinguishes a missing query from one in the wrong state.
func (r *QueryRepository) transition(ctx context.Context, id string, next domain.QueryStatus, set bson.M) (*domain.Query, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set["status"] = string(next)
	set["updated_at"] = time.Now().UTC()

	var doc queryDocument
	err := r.col.FindOneAndUpdate(ctx, transitionFilter(oid, next), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update query status: %w", err)
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("update query status: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrQueryNotFound
	}
	return nil, fmt.Errorf("update query status: %w (to %s)", domain.ErrInvalidTransition, next)
}

// AddResponse appends resp to the conversation atomically.
func (r *QueryRepository) AddResponse(ctx context.Context, id string, resp domain.Response) (*domain.Query, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"responses": toResponseDocument(resp)},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	var doc queryDocument
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("add response: %w", err)
	}
	return doc.toDomain(), nil
}
