package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetPackageByID(id string) (*models.SessionPackage, error)
	ListPackages() ([]models.SessionPackage, error)
	GrantPackage(ctx context.Context, mp *models.MemberPackage, grant *models.CreditTransaction) error
	ListMemberPackages(memberID string) ([]models.MemberPackage, error)
	AvailableCredits(memberID string, now time.Time) (int, error)
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

type LedgerService struct {
	DB     DBLayer
	Kafka  KafkaPublisher
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewLedgerService(db DBLayer, kafka KafkaPublisher, clk clock.Clock, log *logger.Logger) *LedgerService {
	return &LedgerService{DB: db, Kafka: kafka, Clock: clk, Logger: log}
}

// GrantPackage credits a member with a purchased package. The catalog's
// session count and expiry window are snapshotted onto the entry so later
// catalog edits don't touch already-granted credits.
func (s *LedgerService) GrantPackage(ctx context.Context, memberID, packageID, paymentRef string) (*models.MemberPackage, error) {
	pkg, err := s.DB.GetPackageByID(packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, models.ErrPackageNotFound
	}

	now := s.Clock.Now()
	mp := &models.MemberPackage{
		ID:                uuid.NewString(),
		MemberID:          memberID,
		PackageID:         pkg.ID,
		SessionCount:      pkg.SessionCount,
		SessionsRemaining: pkg.SessionCount,
		PurchaseDate:      now,
		ExpiryDate:        now.AddDate(0, 0, pkg.ExpiryDays),
		PaymentRef:        paymentRef,
	}
	grant := &models.CreditTransaction{
		MemberID:  memberID,
		Delta:     pkg.SessionCount,
		Reason:    models.ReasonPackageGranted,
		CreatedAt: now,
	}

	if err := s.DB.GrantPackage(ctx, mp, grant); err != nil {
		return nil, fmt.Errorf("failed to grant package %s to member %s: %w", packageID, memberID, err)
	}

	s.Logger.LogLedger("GRANT", memberID,
		fmt.Sprintf("package %s granted: %d sessions, expires %s", pkg.ID, pkg.SessionCount, mp.ExpiryDate.Format("2006-01-02")))

	s.publish(models.TopicPackageGranted, mp.ID, mp)
	return mp, nil
}

// Balance reports the member's spendable total plus the per-entry
// breakdown. Expired and exhausted entries are listed but contribute zero.
func (s *LedgerService) Balance(memberID string) (*models.CreditBalance, error) {
	entries, err := s.DB.ListMemberPackages(memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit entries for member %s: %w", memberID, err)
	}

	now := s.Clock.Now()
	balance := &models.CreditBalance{
		MemberID: memberID,
		Entries:  make([]models.CreditEntry, 0, len(entries)),
	}
	for _, mp := range entries {
		expired := mp.Expired(now)
		if !expired {
			balance.Available += mp.SessionsRemaining
		}
		balance.Entries = append(balance.Entries, models.CreditEntry{
			MemberPackageID: mp.ID,
			PackageID:       mp.PackageID,
			SessionCount:    mp.SessionCount,
			Remaining:       mp.SessionsRemaining,
			PurchaseDate:    mp.PurchaseDate,
			ExpiryDate:      mp.ExpiryDate,
			Expired:         expired,
		})
	}
	return balance, nil
}

func (s *LedgerService) ListPackages() ([]models.SessionPackage, error) {
	return s.DB.ListPackages()
}

func (s *LedgerService) publish(topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("marshal %s payload: %v", topic, err))
		return
	}
	if err := s.Kafka.Publish(topic, key, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish to %s failed: %v", topic, err))
	}
}
