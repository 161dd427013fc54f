package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

const (
	inventoryCollection = "inventories"
	billsCollection     = "bills"
)

// Documents use the field names of the existing collections so data written
// by earlier deployments stays readable. Money is stored as a double there.
type itemDoc struct {
	MongoID     primitive.ObjectID `bson:"_id,omitempty"`
	ID          string             `bson:"id"`
	Name        string             `bson:"name"`
	Category    string             `bson:"category"`
	Price       float64            `bson:"price"`
	Quantity    int                `bson:"quantity"`
	Description string             `bson:"description"`
	SKU         string             `bson:"sku"`
	Image       string             `bson:"image"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type lineDoc struct {
	ID       string  `bson:"id"`
	Name     string  `bson:"name"`
	Price    float64 `bson:"price"`
	Quantity int     `bson:"quantity"`
}

type billDoc struct {
	MongoID       primitive.ObjectID `bson:"_id,omitempty"`
	ID            string             `bson:"id"`
	BillNumber    string             `bson:"billNumber"`
	Items         []lineDoc          `bson:"items"`
	Total         float64            `bson:"total"`
	CustomerName  string             `bson:"customerName"`
	CustomerPhone string             `bson:"customerPhone"`
	PaymentMethod string             `bson:"paymentMethod"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

type Store struct {
	client *mongo.Client
	items  *mongo.Collection
	bills  *mongo.Collection
}

func New(ctx context.Context, uri string, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetMaxPoolSize(5).
		SetMinPoolSize(1)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		items:  db.Collection(inventoryCollection),
		bills:  db.Collection(billsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("inventory indexes: %w", err)
	}
	if _, err := s.bills.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "billNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("bill indexes: %w", err)
	}
	return nil
}

func (s *Store) Driver() string {
	return "mongo"
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toItemDoc(item domain.InventoryItem) itemDoc {
	return itemDoc{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Price:       item.Price.InexactFloat64(),
		Quantity:    item.Quantity,
		Description: item.Description,
		SKU:         item.SKU,
		Image:       item.Image,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (d itemDoc) toDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Price:       domain.RoundMoney(decimal.NewFromFloat(d.Price)),
		Quantity:    d.Quantity,
		Description: d.Description,
		SKU:         d.SKU,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func toBillDoc(bill domain.Bill) billDoc {
	lines := make([]lineDoc, 0, len(bill.Items))
	for _, l := range bill.Items {
		lines = append(lines, lineDoc{ID: l.ID, Name: l.Name, Price: l.Price.InexactFloat64(), Quantity: l.Quantity})
	}
	return billDoc{
		ID:            bill.ID,
		BillNumber:    bill.BillNumber,
		Items:         lines,
		Total:         bill.Total.InexactFloat64(),
		CustomerName:  bill.CustomerName,
		CustomerPhone: bill.CustomerPhone,
		PaymentMethod: bill.PaymentMethod,
		CreatedAt:     bill.CreatedAt,
	}
}

func (d billDoc) toDomain() domain.Bill {
	lines := make([]domain.BillLine, 0, len(d.Items))
	for _, l := range d.Items {
		lines = append(lines, domain.BillLine{ID: l.ID, Name: l.Name, Price: domain.RoundMoney(decimal.NewFromFloat(l.Price)), Quantity: l.Quantity})
	}
	method := d.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	return domain.Bill{
		ID:            d.ID,
		BillNumber:    d.BillNumber,
		Items:         lines,
		Total:         domain.RoundMoney(decimal.NewFromFloat(d.Total)),
		CustomerName:  d.CustomerName,
		CustomerPhone: d.CustomerPhone,
		PaymentMethod: method,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

func (s *Store) ListItems(ctx context.Context, category string) ([]domain.InventoryItem, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	cur, err := s.items.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []itemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]domain.InventoryItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toDomain())
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var doc itemDoc
	err := s.items.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item := doc.toDomain()
	return &item, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	result := make(map[string]domain.InventoryItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	cur, err := s.items.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []itemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		result[d.ID] = d.toDomain()
	}
	return result, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.items.InsertOne(ctx, toItemDoc(item)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem, setQuantity bool) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	set := bson.M{
		"name":        item.Name,
		"category":    item.Category,
		"price":       item.Price.InexactFloat64(),
		"description": item.Description,
		"sku":         item.SKU,
		"image":       item.Image,
		"updatedAt":   item.UpdatedAt,
	}
	if setQuantity {
		set["quantity"] = item.Quantity
	}
	var doc itemDoc
	err := s.items.FindOneAndUpdate(ctx, bson.M{"id": item.ID}, bson.M{"$set": set}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	updated := doc.toDomain()
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.items.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountItems(ctx context.Context) (int64, error) {
	return s.items.CountDocuments(ctx, bson.D{})
}

type appliedLine struct {
	id  string
	qty int
}

// CreateBill decrements each line with a conditional update and re-credits
// the applied lines if the bill is rejected or its insert fails.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, policy domain.StockPolicy) (*domain.Bill, error) {
	if err := bill.Validate(); err != nil {
		return nil, err
	}

	applied := make([]appliedLine, 0, len(bill.Items))
	shortfalls := make([]domain.StockShortfall, 0)
	for _, line := range bill.Items {
		res, err := s.items.UpdateOne(ctx,
			bson.M{"id": line.ID, "quantity": bson.M{"$gte": line.Quantity}},
			bson.M{"$inc": bson.M{"quantity": -line.Quantity}, "$set": bson.M{"updatedAt": bill.CreatedAt}},
		)
		if err != nil {
			s.compensate(applied)
			return nil, err
		}
		if res.MatchedCount == 1 {
			applied = append(applied, appliedLine{id: line.ID, qty: line.Quantity})
			continue
		}

		var current itemDoc
		err = s.items.FindOne(ctx, bson.M{"id": line.ID}).Decode(&current)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			shortfalls = append(shortfalls, domain.StockShortfall{
				ItemID: line.ID, Name: line.Name, Requested: line.Quantity,
				Reason: domain.ShortfallNotInInventory,
			})
		case err != nil:
			s.compensate(applied)
			return nil, err
		default:
			shortfalls = append(shortfalls, domain.StockShortfall{
				ItemID: line.ID, Name: line.Name, Requested: line.Quantity, Available: current.Quantity,
				Reason: domain.ShortfallInsufficientStock,
			})
		}
	}

	if err := store.CheckShortfalls(policy, shortfalls); err != nil {
		s.compensate(applied)
		return nil, err
	}

	if _, err := s.bills.InsertOne(ctx, toBillDoc(bill)); err != nil {
		s.compensate(applied)
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	bill.Shortfalls = nil
	if len(shortfalls) > 0 {
		bill.Shortfalls = shortfalls
	}
	return &bill, nil
}

func (s *Store) compensate(applied []appliedLine) {
	if len(applied) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, a := range applied {
		if _, err := s.items.UpdateOne(ctx, bson.M{"id": a.id}, bson.M{"$inc": bson.M{"quantity": a.qty}}); err != nil {
			log.Error().Err(err).Str("item_id", a.id).Int("quantity", a.qty).Msg("failed to restore stock after aborted bill")
		}
	}
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	var doc billDoc
	err := s.bills.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	bill := doc.toDomain()
	return &bill, nil
}

func (s *Store) ListBills(ctx context.Context, from time.Time, to time.Time) ([]domain.Bill, error) {
	filter := bson.M{}
	created := bson.M{}
	if !from.IsZero() {
		created["$gte"] = from
	}
	if !to.IsZero() {
		created["$lt"] = to
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}

	cur, err := s.bills.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "billNumber", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []billDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	bills := make([]domain.Bill, 0, len(docs))
	for _, d := range docs {
		bills = append(bills, d.toDomain())
	}
	return bills, nil
}

func (s *Store) CountBills(ctx context.Context) (int64, error) {
	return s.bills.CountDocuments(ctx, bson.D{})
}

func (s *Store) ImportItems(ctx context.Context, items []domain.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]any, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		docs = append(docs, toItemDoc(item))
	}
	if _, err := s.items.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ImportBills(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	docs := make([]any, 0, len(bills))
	for _, bill := range bills {
		if err := bill.Validate(); err != nil {
			return err
		}
		docs = append(docs, toBillDoc(bill))
	}
	if _, err := s.bills.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}
