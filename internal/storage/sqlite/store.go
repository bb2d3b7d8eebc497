// Package sqlite is an embedded gorm-backed Store for local development.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type userRecord struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	ProfilePic   string
	Role         string `gorm:"index;not null;default:USER"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

type loanRecord struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"index;not null"`
	VerifierID       *string
	ApproverID       *string
	FullName         string  `gorm:"not null"`
	Amount           float64 `gorm:"not null"`
	LoanTenure       int     `gorm:"not null"`
	EmploymentStatus string  `gorm:"not null"`
	Reason           string  `gorm:"not null"`
	StreetAddress    string  `gorm:"not null"`
	CityStateZip     string  `gorm:"not null"`
	IsVerified       bool    `gorm:"not null;default:false"`
	Status           string  `gorm:"index;not null;default:PENDING"`
	Remarks          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (loanRecord) TableName() string { return "loans" }

// Store persists users and loans in a SQLite file through gorm.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&userRecord{}, &loanRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Ping checks the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	rec := toUserRecord(user)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicate(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return rec.toModel(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return models.User{}, notFound(err)
	}
	return rec.toModel(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "email = ?", email).Error; err != nil {
		return models.User{}, notFound(err)
	}
	return rec.toModel(), nil
}

func (s *Store) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	qb := s.db.WithContext(ctx).Model(&userRecord{})
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		qb = qb.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(role) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}
	var recs []userRecord
	if err := qb.Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toModel())
	}
	return users, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role models.Role) (models.User, error) {
	res := s.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).
		Updates(map[string]any{"role": string(role), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return models.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.User{}, storage.ErrNotFound
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) CountUsersByRole(ctx context.Context, role models.Role) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&userRecord{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Store) CreateLoan(ctx context.Context, loan models.Loan) (models.Loan, error) {
	rec := toLoanRecord(loan)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&userRecord{}).Where("id = ?", loan.UserID).Count(&owners).Error; err != nil {
			return err
		}
		if owners == 0 {
			return storage.ErrNotFound
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return models.Loan{}, storage.ErrAlreadyExists
		}
		return models.Loan{}, err
	}
	return rec.toModel(), nil
}

func (s *Store) FindLoanByID(ctx context.Context, id string) (models.Loan, error) {
	var rec loanRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return models.Loan{}, notFound(err)
	}
	return rec.toModel(), nil
}

func (s *Store) ApplyVerification(ctx context.Context, id string, v models.Verification) (models.Loan, error) {
	return s.updateLoan(ctx, id, map[string]any{
		"is_verified": v.Verified,
		"verifier_id": v.VerifierID,
	})
}

func (s *Store) ApplyDecision(ctx context.Context, id string, d models.Decision) (models.Loan, error) {
	fields := map[string]any{
		"status":      string(d.Status),
		"approver_id": d.ApproverID,
	}
	if d.Remarks != nil {
		fields["remarks"] = *d.Remarks
	}
	return s.updateLoan(ctx, id, fields)
}

func (s *Store) ListLoans(ctx context.Context) ([]models.Loan, error) {
	return s.findLoans(s.db.WithContext(ctx))
}

func (s *Store) ListVerifiedUnapproved(ctx context.Context) ([]models.Loan, error) {
	return s.findLoans(s.db.WithContext(ctx).Where("is_verified = ? AND approver_id IS NULL", true))
}

func (s *Store) ListLoansByOwner(ctx context.Context, ownerID string) ([]models.OwnedLoan, error) {
	out := make([]models.OwnedLoan, 0)
	owner, err := s.FindUserByID(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	loans, err := s.findLoans(s.db.WithContext(ctx).Where("user_id = ?", ownerID))
	if err != nil {
		return nil, err
	}
	for _, loan := range loans {
		out = append(out, models.OwnedLoan{
			Loan:  loan,
			Owner: models.LoanOwner{ID: owner.ID, Name: owner.Name, ProfilePic: owner.ProfilePic},
		})
	}
	return out, nil
}

func (s *Store) updateLoan(ctx context.Context, id string, fields map[string]any) (models.Loan, error) {
	fields["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&loanRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.Loan{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Loan{}, storage.ErrNotFound
	}
	return s.FindLoanByID(ctx, id)
}

func (s *Store) findLoans(qb *gorm.DB) ([]models.Loan, error) {
	var recs []loanRecord
	if err := qb.Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, err
	}
	loans := make([]models.Loan, 0, len(recs))
	for _, rec := range recs {
		loans = append(loans, rec.toModel())
	}
	return loans, nil
}

func toUserRecord(u models.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		ProfilePic:   u.ProfilePic,
		Role:         string(u.Role),
	}
}

func (r userRecord) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		ProfilePic:   r.ProfilePic,
		Role:         models.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toLoanRecord(l models.Loan) loanRecord {
	return loanRecord{
		ID:               l.ID,
		UserID:           l.UserID,
		VerifierID:       l.VerifierID,
		ApproverID:       l.ApproverID,
		FullName:         l.FullName,
		Amount:           l.Amount,
		LoanTenure:       l.LoanTenure,
		EmploymentStatus: l.EmploymentStatus,
		Reason:           l.Reason,
		StreetAddress:    l.StreetAddress,
		CityStateZip:     l.CityStateZip,
		IsVerified:       l.IsVerified,
		Status:           string(l.Status),
		Remarks:          l.Remarks,
	}
}

func (r loanRecord) toModel() models.Loan {
	return models.Loan{
		ID:               r.ID,
		UserID:           r.UserID,
		VerifierID:       r.VerifierID,
		ApproverID:       r.ApproverID,
		FullName:         r.FullName,
		Amount:           r.Amount,
		LoanTenure:       r.LoanTenure,
		EmploymentStatus: r.EmploymentStatus,
		Reason:           r.Reason,
		StreetAddress:    r.StreetAddress,
		CityStateZip:     r.CityStateZip,
		IsVerified:       r.IsVerified,
		Status:           models.LoanStatus(r.Status),
		Remarks:          r.Remarks,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
