package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"waste-insights/internal/features/reports/domain"
)

// ErrReportNotFound is returned when an update targets a missing report id.
var ErrReportNotFound = errors.New("report not found")

const reportsCollection = "reports"

// MongoReportStore implements ports.ReportStore and ports.ReportWriter on a
// MongoDB collection. Report timestamps are stored as RFC3339 UTC strings, so
// lexicographic range filters are also chronological.
type MongoReportStore struct {
	collection *mongo.Collection
}

// NewMongoReportStore connects to MongoDB and prepares the reports collection.
func NewMongoReportStore(ctx context.Context, uri, database string) (*MongoReportStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	store := &MongoReportStore{
		collection: client.Database(database).Collection(reportsCollection),
	}
	store.ensureIndexes(ctx)
	return store, nil
}

// ensureIndexes creates query indexes; failures are non-fatal.
func (s *MongoReportStore) ensureIndexes(ctx context.Context) {
	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_driver", Value: 1}}},
	}
	_, _ = s.collection.Indexes().CreateMany(idxCtx, models)
}

// Ping verifies the connection is still alive.
func (s *MongoReportStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *MongoReportStore) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}

// Fetch returns raw report documents created inside the range, filtered by
// the optional category/status/driver fields.
func (s *MongoReportStore) Fetch(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) ([]domain.RawReport, error) {
	cursor, err := s.collection.Find(ctx, BuildFetchFilter(dateRange, filter))
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}
	defer cursor.Close(ctx)

	var raws []domain.RawReport
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return raws, nil
}

// BuildFetchFilter translates a date range and filter into a Mongo query
// document. Exported for direct testing; it is a pure function.
func BuildFetchFilter(dateRange domain.DateRange, filter domain.Filter) bson.M {
	query := bson.M{
		"created_at": bson.M{
			"$gte": dateRange.Start.UTC().Format(time.RFC3339),
			"$lte": dateRange.End.UTC().Format(time.RFC3339),
		},
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.AssignedDriver != "" {
		query["assigned_driver"] = filter.AssignedDriver
	}
	return query
}

// Insert stores a newly submitted report document.
func (s *MongoReportStore) Insert(ctx context.Context, report domain.RawReport) error {
	if _, err := s.collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// AppendStatus pushes a history entry and updates the current status and
// updated_at on the report document.
func (s *MongoReportStore) AppendStatus(ctx context.Context, reportID string, entry domain.RawStatusEntry) error {
	update := bson.M{
		"$set":  bson.M{"status": entry.Status, "updated_at": entry.Timestamp},
		"$push": bson.M{"status_history": entry},
	}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": reportID}, update)
	if err != nil {
		return fmt.Errorf("append status to %s: %w", reportID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}
	return nil
}

// AssignDriver sets the assigned driver and records the Assigned transition.
func (s *MongoReportStore) AssignDriver(ctx context.Context, reportID string, driverID string, entry domain.RawStatusEntry) error {
	update := bson.M{
		"$set": bson.M{
			"assigned_driver": driverID,
			"status":          entry.Status,
			"updated_at":      entry.Timestamp,
		},
		"$push": bson.M{"status_history": entry},
	}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": reportID}, update)
	if err != nil {
		return fmt.Errorf("assign driver on %s: %w", reportID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}
	return nil
}
