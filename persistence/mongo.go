package persistence

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/utils"
)

// DefaultMongoDatabase is used when MongoConfig names no database.
const DefaultMongoDatabase = "scenecore"

// MongoConfig describes how to reach a MongoDB deployment.
type MongoConfig struct {
	URI            string        `json:"uri"`
	Database       string        `json:"database"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// Validate ensures all parts of the config are valid.
func (cfg MongoConfig) Validate(path string) error {
	if cfg.URI == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "uri")
	}
	return nil
}

// modelDocument is the stored form of an object's transform. Arrays match what browser clients write.
type modelDocument struct {
	ID        string     `bson:"_id"`
	Position  [3]float64 `bson:"position"`
	Rotation  [3]float64 `bson:"rotation"`
	UpdatedAt time.Time  `bson:"updatedAt,omitempty"`
}

type textBoxDocument struct {
	ID                    string     `bson:"_id"`
	Position              [3]float64 `bson:"position"`
	Text                  string     `bson:"text"`
	TextColor             string     `bson:"textColor"`
	BackgroundColor       string     `bson:"backgroundColor"`
	BackgroundTransparent bool       `bson:"backgroundTransparent"`
	FontSize              float64    `bson:"fontSize"`
	CreatedAt             time.Time  `bson:"createdAt,omitempty"`
	UpdatedAt             time.Time  `bson:"updatedAt,omitempty"`
}

func textBoxFromDocument(doc textBoxDocument) scene.TextBox {
	return scene.TextBox{
		ID:                    doc.ID,
		Position:              r3.Vector{X: doc.Position[0], Y: doc.Position[1], Z: doc.Position[2]},
		Text:                  doc.Text,
		TextColor:             doc.TextColor,
		BackgroundColor:       doc.BackgroundColor,
		BackgroundTransparent: doc.BackgroundTransparent,
		FontSize:              doc.FontSize,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}.Normalized()
}

// textBoxUpdate returns the $set document for a text box. createdAt is kept when known and stamped otherwise.
func textBoxUpdate(tb scene.TextBox, now time.Time) bson.M {
	created := tb.CreatedAt
	if created.IsZero() {
		created = now
	}
	return bson.M{"$set": bson.M{
		"position":              referenceframe.Vector3(tb.Position),
		"text":                  tb.Text,
		"textColor":             tb.TextColor,
		"backgroundColor":       tb.BackgroundColor,
		"backgroundTransparent": tb.BackgroundTransparent,
		"fontSize":              tb.FontSize,
		"createdAt":             created,
		"updatedAt":             now,
	}}
}

func transformUpdate(t referenceframe.Transform, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"position":  referenceframe.Vector3(t.Position),
		"rotation":  referenceframe.Rotation3(t.Rotation),
		"updatedAt": now,
	}}
}

// MongoStore persists to the "models" and "textBoxes" collections of a MongoDB database, one document per
// entity keyed by its id.
type MongoStore struct {
	client    *mongo.Client
	models    *mongo.Collection
	textBoxes *mongo.Collection
	now       func() time.Time
	logger    logging.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger logging.Logger) (*MongoStore, error) {
	if err := cfg.Validate("mongo"); err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to mongo")
	}
	guard := utils.NewGuard(func() error { return client.Disconnect(ctx) })
	defer guard.OnFail()
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "cannot ping mongo")
	}

	database := cfg.Database
	if database == "" {
		database = DefaultMongoDatabase
	}
	db := client.Database(database)
	logger.Infow("connected to mongo", "database", database)
	guard.Success()
	return &MongoStore{
		client:    client,
		models:    db.Collection(ModelsCollection),
		textBoxes: db.Collection(TextBoxesCollection),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// SaveEntityTransform upserts the transform of an object.
func (ms *MongoStore) SaveEntityTransform(ctx context.Context, id string, t referenceframe.Transform) error {
	_, err := ms.models.UpdateOne(ctx, bson.M{"_id": id}, transformUpdate(t, ms.now()), options.Update().SetUpsert(true))
	return errors.Wrapf(err, "cannot save transform of %q", id)
}

// LoadEntityTransform returns the saved transform of an object.
func (ms *MongoStore) LoadEntityTransform(ctx context.Context, id string) (referenceframe.Transform, bool, error) {
	var doc modelDocument
	err := ms.models.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return referenceframe.Transform{}, false, nil
	}
	if err != nil {
		return referenceframe.Transform{}, false, errors.Wrapf(err, "cannot load transform of %q", id)
	}
	return referenceframe.FromArrays(doc.Position, doc.Rotation), true, nil
}

// SaveTextBox upserts a text box.
func (ms *MongoStore) SaveTextBox(ctx context.Context, tb scene.TextBox) error {
	_, err := ms.textBoxes.UpdateOne(ctx, bson.M{"_id": tb.ID}, textBoxUpdate(tb, ms.now()), options.Update().SetUpsert(true))
	return errors.Wrapf(err, "cannot save text box %q", tb.ID)
}

// LoadTextBoxes returns every saved text box.
func (ms *MongoStore) LoadTextBoxes(ctx context.Context) ([]scene.TextBox, error) {
	cursor, err := ms.textBoxes.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "cannot query text boxes")
	}
	var docs []textBoxDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "cannot decode text boxes")
	}
	out := make([]scene.TextBox, 0, len(docs))
	for _, doc := range docs {
		out = append(out, textBoxFromDocument(doc))
	}
	return out, nil
}

// DeleteTextBox removes a text box.
func (ms *MongoStore) DeleteTextBox(ctx context.Context, id string) error {
	_, err := ms.textBoxes.DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrapf(err, "cannot delete text box %q", id)
}

// Close disconnects from MongoDB.
func (ms *MongoStore) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}
