package repository

import (
	"context"
	"time"

	"civicfix-be/models"
	"civicfix-be/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIssueRepository implements IssueRepository on a MongoDB collection.
type MongoIssueRepository struct {
	collection *mongo.Collection
}

func NewMongoIssueRepository(collection *mongo.Collection) *MongoIssueRepository {
	return &MongoIssueRepository{collection: collection}
}

// EnsurePublicIDIndex creates a unique index on publicId.
func EnsurePublicIDIndex(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "publicId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

func (r *MongoIssueRepository) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if issue.Title == "" || issue.Description == "" || issue.Location == "" {
		return nil, ErrValidation
	}

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.PublicID == "" {
		publicID, err := utils.NewIssuePublicID()
		if err != nil {
			return nil, err
		}
		issue.PublicID = publicID
	}
	if issue.Status == "" {
		issue.Status = models.StatusPending
	}
	issue.ConfirmationToken = nil
	now := time.Now()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *MongoIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) FindByPublicID(ctx context.Context, publicID string) (*models.Issue, error) {
	var issue models.Issue
	err := r.collection.FindOne(ctx, bson.M{"publicId": publicID}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from []models.IssueStatus, to models.IssueStatus, extra *StatusExtra) (*models.Issue, error) {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}

	set := bson.M{"status": to, "updatedAt": time.Now()}
	if extra != nil {
		if extra.ConfirmationToken != nil {
			set["confirmationToken"] = *extra.ConfirmationToken
		}
		if extra.ResolutionImageURL != nil {
			set["resolutionImageUrl"] = *extra.ResolutionImageURL
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		// Distinguish a missing record from a lost precondition.
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) ConsumeConfirmationToken(ctx context.Context, publicID, token string, to models.IssueStatus) (*models.Issue, error) {
	filter := bson.M{
		"publicId":          publicID,
		"confirmationToken": token,
		"status":            models.StatusResolvedPendingConfirmation,
	}
	update := bson.M{
		"$set":   bson.M{"status": to, "updatedAt": time.Now()},
		"$unset": bson.M{"confirmationToken": ""},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		// The conditional update is the atomic consume; this read only
		// classifies the failure.
		if _, ferr := r.FindByPublicID(ctx, publicID); ferr != nil {
			return nil, ferr
		}
		return nil, ErrTokenMismatch
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) AttachFeedback(ctx context.Context, publicID, note string, imageURL *string) (*models.Issue, error) {
	set := bson.M{
		"userConfirmation": models.ConfirmationRejected,
		"updatedAt":        time.Now(),
	}
	if note != "" {
		set["feedbackNote"] = note
	}
	if imageURL != nil {
		set["feedbackImageUrl"] = *imageURL
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"publicId": publicID}, bson.M{"$set": set}, opts).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) Update(ctx context.Context, id primitive.ObjectID, upd IssueUpdate) (*models.Issue, error) {
	set := bson.M{"updatedAt": time.Now()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.ImageURL != nil {
		set["imageUrl"] = *upd.ImageURL
	}
	if upd.Latitude != nil {
		set["latitude"] = *upd.Latitude
	}
	if upd.Longitude != nil {
		set["longitude"] = *upd.Longitude
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoIssueRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Issue, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"createdBy": ownerID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *MongoIssueRepository) ListAll(ctx context.Context, filter IssueFilter, sort string, page, limit int) (*IssueList, error) {
	query := bson.M{}
	if filter.Category != "" && filter.Category != "all" {
		query["category"] = filter.Category
	}
	if filter.Status != "" && filter.Status != "all" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		query["$or"] = []bson.M{
			{"title": bson.M{"$regex": filter.Search, "$options": "i"}},
			{"description": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	var sortOptions bson.D
	switch sort {
	case "oldest":
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	case "newest":
		fallthrough
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	skip := (page - 1) * limit
	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}

	return &IssueList{Issues: issues, Total: total}, nil
}
