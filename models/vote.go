package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Vote is one citizen's upvote on an issue. The unique (issue, user) index
// makes the toggle in the vote handler race-safe.
type Vote struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// EnsureVoteIndex creates the unique compound index for (issue, user).
func EnsureVoteIndex(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// CountVotes returns the number of votes on an issue, zero on error.
func CountVotes(ctx context.Context, collection *mongo.Collection, issueID primitive.ObjectID) int64 {
	count, err := collection.CountDocuments(ctx, bson.M{"issue": issueID})
	if err != nil {
		return 0
	}
	return count
}

// HasVoted reports whether the user has an active vote on the issue.
func HasVoted(ctx context.Context, collection *mongo.Collection, issueID, userID primitive.ObjectID) bool {
	count, err := collection.CountDocuments(ctx, bson.M{"issue": issueID, "user": userID})
	return err == nil && count > 0
}
