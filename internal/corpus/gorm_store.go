package corpus

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Summoner{}, &Applicability{}, &Champion{}); err != nil {
		return fmt.Errorf("migrate corpus: %w", err)
	}
	return nil
}

func (s *GormStore) FindMatching(ctx context.Context, f Filter, after uint, limit int) ([]Summoner, error) {
	q := s.db.WithContext(ctx).Model(&Summoner{})
	if f.Question != "" {
		q = q.Joins("JOIN applicabilities ON applicabilities.summoner_id = summoners.id AND applicabilities.question_id = ?", f.Question)
	}

	var out []Summoner
	err := q.Where("summoners.id > ?", after).
		Order("summoners.id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find matching %s after %d: %w", f, after, err)
	}
	return out, nil
}

// UpsertSummoner inserts or refreshes a summoner keyed by platform and
// summoner id, and rewrites its applicability rows. s.ID is filled in.
// A record without a display name keeps the stored name and icon.
func (s *GormStore) UpsertSummoner(ctx context.Context, sum *Summoner) error {
	cols := []string{"masteries", "applicable_questions", "masteries_time"}
	if sum.DisplayName != "" {
		cols = append(cols, "display_name", "profile_icon")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "summoner_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).Create(sum).Error
		if err != nil {
			return fmt.Errorf("upsert summoner %s/%d: %w", sum.Platform, sum.SummonerID, err)
		}

		if err := tx.Where("summoner_id = ?", sum.ID).Delete(&Applicability{}).Error; err != nil {
			return fmt.Errorf("clear applicability %d: %w", sum.ID, err)
		}
		if len(sum.ApplicableQuestions) == 0 {
			return nil
		}
		rows := make([]Applicability, 0, len(sum.ApplicableQuestions))
		for _, q := range sum.ApplicableQuestions {
			rows = append(rows, Applicability{SummonerID: sum.ID, QuestionID: q})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("write applicability %d: %w", sum.ID, err)
		}
		return nil
	})
}

func (s *GormStore) CountSummoners(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Summoner{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count summoners: %w", err)
	}
	return n, nil
}

func (s *GormStore) Champions(ctx context.Context) ([]Champion, error) {
	var out []Champion
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load champions: %w", err)
	}
	return out, nil
}

func (s *GormStore) ReplaceChampions(ctx context.Context, champions []Champion) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Champion{}).Error; err != nil {
			return fmt.Errorf("clear champions: %w", err)
		}
		if len(champions) == 0 {
			return nil
		}
		if err := tx.Create(&champions).Error; err != nil {
			return fmt.Errorf("insert champions: %w", err)
		}
		return nil
	})
}
