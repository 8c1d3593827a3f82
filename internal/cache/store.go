package cache

import (
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradenode/internal/order"
	"tradenode/internal/position"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// StoreOption defines connection options for the PostgreSQL snapshot store.
type StoreOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// OrderRecord is the persisted shape of an order snapshot.
type OrderRecord struct {
	ClientOrderID string `gorm:"primaryKey"`
	InstrumentID  uint32
	StrategyID    uint32
	Side          string
	Type          string
	Status        string
	Quantity      string
	FilledQty     string
	Price         string
	AvgPx         string
	TimeInForce   string
	ExpireTimeNs  int64
	PositionID    string
	VenueOrderID  string
	TsLast        int64
}

// PositionRecord is the persisted shape of a position snapshot.
type PositionRecord struct {
	PositionID   string `gorm:"primaryKey"`
	InstrumentID uint32
	StrategyID   uint32
	Status       string
	Quantity     string
	AvgPxOpen    string
	AvgPxClose   string
	RealizedPnL  string
	TsOpened     int64
	TsClosed     int64
	TsLast       int64
}

// Store persists order and position snapshots through gorm.
type Store struct {
	opt StoreOption
	db  *gorm.DB
}

// NewStore opens the snapshot store and migrates its tables.
func NewStore(option StoreOption) (*Store, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&OrderRecord{}, &PositionRecord{}); err != nil {
		return nil, err
	}

	return &Store{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveOrder upserts an order snapshot. The mutable fields come from a locked
// snapshot, so a concurrently applied event never produces a torn row.
func (s *Store) SaveOrder(o *order.Order) error {
	snap := o.Snapshot()
	record := OrderRecord{
		ClientOrderID: string(o.ClientOrderID),
		InstrumentID:  uint32(o.InstrumentID),
		StrategyID:    uint32(o.StrategyID),
		Side:          o.Side.String(),
		Type:          o.Type.String(),
		Status:        snap.Status.String(),
		Quantity:      o.Quantity.String(),
		FilledQty:     snap.FilledQty.String(),
		Price:         o.Price.String(),
		AvgPx:         snap.AvgPx.String(),
		TimeInForce:   o.TimeInForce.String(),
		ExpireTimeNs:  o.ExpireTimeNs,
		PositionID:    string(snap.PositionID),
		VenueOrderID:  string(snap.VenueOrderID),
		TsLast:        snap.TsLast,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

// SavePosition upserts a position snapshot.
func (s *Store) SavePosition(p *position.Position) error {
	record := PositionRecord{
		PositionID:   string(p.ID),
		InstrumentID: uint32(p.InstrumentID),
		StrategyID:   uint32(p.StrategyID),
		Status:       p.Status.String(),
		Quantity:     p.Quantity.String(),
		AvgPxOpen:    p.AvgPxOpen.String(),
		AvgPxClose:   p.AvgPxClose.String(),
		RealizedPnL:  p.RealizedPnL.String(),
		TsOpened:     p.TsOpened,
		TsClosed:     p.TsClosed,
		TsLast:       p.TsLast,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

func (opt StoreOption) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	if len(query) != 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
