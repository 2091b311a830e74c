package repository

// Gateway groups every repository behind one value. Services depend on narrow
// interfaces that *Gateway satisfies through the embedded repositories.
type Gateway struct {
	*MissionRepository
	*UserRepository
	*BadgeRepository
	*NotificationRepository
	*SettlementRepository
}

// NewGateway creates a gateway over a database connection.
func NewGateway(db *DB) *Gateway {
	return &Gateway{
		MissionRepository:      NewMissionRepository(db),
		UserRepository:         NewUserRepository(db),
		BadgeRepository:        NewBadgeRepository(db),
		NotificationRepository: NewNotificationRepository(db),
		SettlementRepository:   NewSettlementRepository(db),
	}
}
