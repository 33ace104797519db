package implementation

import (
	"context"
	"errors"
	"regexp"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/mapper"
	"iso-risk-agent-be/internal/model"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// controlTextFields are scanned by keyword filters.
var controlTextFields = []string{
	"title", "description", "control_statement",
	"implementation_guidance", "domain_category", "annex_reference",
}

type MongoDocumentStore struct {
	users    *mongo.Collection
	risks    *mongo.Collection
	controls *mongo.Collection
	mapper   *mapper.DocumentMapper
}

func NewMongoDocumentStore(db *database.MongoDB) contract.DocumentStore {
	return &MongoDocumentStore{
		users:    db.Collection(database.CollectionUsers),
		risks:    db.Collection(database.CollectionRisks),
		controls: db.Collection(database.CollectionControls),
		mapper:   mapper.NewDocumentMapper(),
	}
}

func (s *MongoDocumentStore) FindUser(ctx context.Context, userId string) (*entity.User, error) {
	var doc model.UserDocument
	err := s.users.FindOne(ctx, bson.M{"id": userId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, contract.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.mapper.UserToEntity(&doc), nil
}

func (s *MongoDocumentStore) FindRisks(ctx context.Context, f contract.RiskFilter) ([]*entity.Risk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := s.risks.Find(ctx, riskFilterToBSON(f), opts)
	if err != nil {
		return nil, err
	}
	var docs []model.RiskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	risks := make([]*entity.Risk, len(docs))
	for i := range docs {
		risks[i] = s.mapper.RiskToEntity(&docs[i])
	}
	return risks, nil
}

func (s *MongoDocumentStore) FindControls(ctx context.Context, f contract.ControlFilter) ([]*entity.Control, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "control_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := s.controls.Find(ctx, controlFilterToBSON(f), opts)
	if err != nil {
		return nil, err
	}
	var docs []model.ControlDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	controls := make([]*entity.Control, len(docs))
	for i := range docs {
		controls[i] = s.mapper.ControlToEntity(&docs[i])
	}
	return controls, nil
}

func (s *MongoDocumentStore) UpsertRisk(ctx context.Context, risk *entity.Risk) error {
	_, err := s.risks.ReplaceOne(ctx, bson.M{"id": risk.Id}, s.mapper.RiskToDocument(risk), options.Replace().SetUpsert(true))
	return err
}

// UpsertControls sends the whole batch as one ordered bulk write keyed by id,
// so replaying a batch never duplicates controls.
func (s *MongoDocumentStore) UpsertControls(ctx context.Context, controls []*entity.Control) ([]string, error) {
	if len(controls) == 0 {
		return nil, nil
	}

	writes := make([]mongo.WriteModel, len(controls))
	ids := make([]string, len(controls))
	for i, c := range controls {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"id": c.Id}).
			SetReplacement(s.mapper.ControlToDocument(c)).
			SetUpsert(true)
		ids[i] = c.Id
	}

	if _, err := s.controls.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MongoDocumentStore) DeleteRisk(ctx context.Context, userId, id string) error {
	return deleteOwned(ctx, s.risks, userId, id)
}

func (s *MongoDocumentStore) DeleteControl(ctx context.Context, userId, id string) error {
	return deleteOwned(ctx, s.controls, userId, id)
}

func deleteOwned(ctx context.Context, coll *mongo.Collection, userId, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"id": id, "user_id": userId})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func riskFilterToBSON(f contract.RiskFilter) bson.M {
	filter := bson.M{}
	if f.UserId != "" {
		filter["user_id"] = f.UserId
	}
	if len(f.Ids) > 0 {
		filter["id"] = bson.M{"$in": f.Ids}
	}
	if f.Category != "" {
		filter["category"] = exactInsensitive(f.Category)
	}
	return filter
}

func controlFilterToBSON(f contract.ControlFilter) bson.M {
	filter := bson.M{}
	if f.UserId != "" {
		filter["user_id"] = f.UserId
	}
	if f.RiskId != "" {
		filter["risk_id"] = f.RiskId
	} else if len(f.RiskIds) > 0 {
		filter["risk_id"] = bson.M{"$in": f.RiskIds}
	}
	if len(f.Ids) > 0 {
		filter["id"] = bson.M{"$in": f.Ids}
	}
	if f.DomainCategory != "" {
		filter["domain_category"] = string(f.DomainCategory)
	}

	var and []bson.M
	if len(f.AnnexPrefixes) > 0 {
		var or []bson.M
		for _, p := range f.AnnexPrefixes {
			or = append(or, bson.M{"annex_reference": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(p)}})
		}
		and = append(and, bson.M{"$or": or})
	}
	if len(f.Keywords) > 0 {
		var or []bson.M
		for _, k := range f.Keywords {
			if k == "" {
				continue
			}
			rx := primitive.Regex{Pattern: regexp.QuoteMeta(k), Options: "i"}
			for _, field := range controlTextFields {
				or = append(or, bson.M{field: rx})
			}
		}
		if len(or) > 0 {
			and = append(and, bson.M{"$or": or})
		}
	}
	if len(and) > 0 {
		filter["$and"] = and
	}
	return filter
}

func exactInsensitive(v string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(v) + "$", Options: "i"}
}
