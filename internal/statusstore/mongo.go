package statusstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	studiesCollection        = "studies"
	transcriptionsCollection = "transcriptions"
)

// MongoStore is the production Store. The client is constructed once at
// process start and passed down explicitly; there is no package-level
// connection state.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logrus.Entry
}

// NewMongoStore connects and pings. A failed ping is returned to the
// caller: the monitor refuses to start without status tracking.
func NewMongoStore(ctx context.Context, uri, database string, log *logrus.Entry) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.WithField("database", database).Info("connected to mongodb")
	return &MongoStore{
		client: client,
		db:     client.Database(database),
		log:    log,
	}, nil
}

func (s *MongoStore) UpsertStatus(ctx context.Context, studyKey string, upd StatusUpdate) error {
	now := time.Now().UTC()

	set := bson.M{
		"status":                 upd.Status,
		"last_updated_timestamp": now,
	}
	if upd.DicomPath != "" {
		set["dicom_path"] = upd.DicomPath
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"study_key":          studyKey,
			"received_timestamp": now,
		},
	}
	if upd.ErrorMessage != "" {
		set["error_message"] = upd.ErrorMessage
	} else if upd.Status != StatusError {
		update["$unset"] = bson.M{"error_message": ""}
	}

	_, err := s.db.Collection(studiesCollection).UpdateOne(ctx,
		bson.M{"study_key": studyKey}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert status for study %s: %w", studyKey, err)
	}

	s.log.WithFields(logrus.Fields{
		"study_key": studyKey,
		"status":    upd.Status,
	}).Debug("study status updated")
	return nil
}

func (s *MongoStore) SaveResult(ctx context.Context, rec TranscriptionRecord) error {
	if rec.TranscribedAt.IsZero() {
		rec.TranscribedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(transcriptionsCollection).InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("save transcription for study %s: %w", rec.StudyKey, err)
	}
	return nil
}

func (s *MongoStore) ListStatuses(ctx context.Context) ([]StudyStatus, error) {
	cur, err := s.db.Collection(studiesCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "last_updated_timestamp", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer cur.Close(ctx)

	var statuses []StudyStatus
	if err := cur.All(ctx, &statuses); err != nil {
		return nil, fmt.Errorf("decode statuses: %w", err)
	}
	return statuses, nil
}

func (s *MongoStore) GetStatus(ctx context.Context, studyKey string) (*StudyStatus, error) {
	var status StudyStatus
	err := s.db.Collection(studiesCollection).
		FindOne(ctx, bson.M{"study_key": studyKey}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status for study %s: %w", studyKey, err)
	}
	return &status, nil
}

func (s *MongoStore) LatestResult(ctx context.Context, studyKey string) (*TranscriptionRecord, error) {
	var rec TranscriptionRecord
	err := s.db.Collection(transcriptionsCollection).
		FindOne(ctx, bson.M{"study_key": studyKey},
			options.FindOne().SetSort(bson.D{{Key: "transcription_timestamp", Value: -1}})).
		Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest result for study %s: %w", studyKey, err)
	}
	return &rec, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
