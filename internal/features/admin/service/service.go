// Package service implements the administrative surface: codes, tasks, minting and balance corrections.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/common/validation"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/ledger"
	"github.com/zagip/zagip-game/internal/platform/objectstore"
)

type CodeInput struct {
	Code    string `json:"code"`
	Reward  int64  `json:"reward"`
	MaxUses int    `json:"maxUses"`
}

type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Reward      int64  `json:"reward"`
}

// Image is an uploaded artwork file.
type Image struct {
	Filename    string
	ContentType string
	Body        []byte
}

type Service struct {
	store   domain.Store
	artwork objectstore.Store
	now     func() time.Time
	log     zerolog.Logger
}

func NewService(store domain.Store, artwork objectstore.Store) *Service {
	return &Service{store: store, artwork: artwork, now: time.Now, log: logger.Component("admin")}
}

// GenerateCode returns CODE followed by eight upper-case hex characters.
func GenerateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CODE" + strings.ToUpper(raw[:8])
}

func (s *Service) CreateCode(ctx context.Context, in CodeInput) (*domain.RedeemableCode, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validation.ValidateCode(in.Code); err != nil {
		return nil, apperrors.NewValidationError("code", err.Error())
	}
	if err := validation.ValidateReward(in.Reward); err != nil {
		return nil, apperrors.NewValidationError("reward", err.Error())
	}
	if err := validation.ValidateMaxUses(in.MaxUses); err != nil {
		return nil, apperrors.NewValidationError("maxUses", err.Error())
	}
	if in.Code == "" {
		in.Code = GenerateCode()
	}

	c := &domain.RedeemableCode{
		Code:      in.Code,
		Reward:    in.Reward,
		MaxUses:   in.MaxUses,
		Active:    true,
		CreatedAt: s.now(),
	}
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.CreateCode(ctx, c)
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, apperrors.New(apperrors.ErrCodeDuplicateCodeValue, "Code already exists").WithDetail("code", in.Code)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("create code", err)
	}
	s.log.Info().Str("code", c.Code).Int64("reward", c.Reward).Int("max_uses", c.MaxUses).Msg("Code created")
	return c, nil
}

func (s *Service) Codes(ctx context.Context) ([]*domain.RedeemableCode, error) {
	var out []*domain.RedeemableCode
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = tx.Codes(ctx)
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list codes", err)
	}
	return out, nil
}

func (s *Service) DeleteCode(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.DeleteCode(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewNotFoundError("code", id)
	}
	if err != nil {
		return apperrors.NewDatabaseError("delete code", err)
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*domain.Task, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, apperrors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperrors.NewValidationError("description", err.Error())
	}
	if err := validation.ValidateLink(in.Link); err != nil {
		return nil, apperrors.NewValidationError("link", err.Error())
	}
	if err := validation.ValidateReward(in.Reward); err != nil {
		return nil, apperrors.NewValidationError("reward", err.Error())
	}

	task := &domain.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Link:        strings.TrimSpace(in.Link),
		Reward:      in.Reward,
		Active:      true,
		CreatedAt:   s.now(),
	}
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("create task", err)
	}
	s.log.Info().Int64("task_id", task.ID).Int64("reward", task.Reward).Msg("Task created")
	return task, nil
}

func (s *Service) Tasks(ctx context.Context) ([]*domain.Task, error) {
	var out []*domain.Task
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = tx.Tasks(ctx, false)
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list tasks", err)
	}
	return out, nil
}

func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.DeleteTask(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewNotFoundError("task", id)
	}
	if err != nil {
		return apperrors.NewDatabaseError("delete task", err)
	}
	return nil
}

// MintItems uploads the artwork once and creates amount identical unowned items that share it.
func (s *Service) MintItems(ctx context.Context, def domain.ItemDefinition, amount int, img Image) ([]*domain.Item, error) {
	if err := validateDefinition(def, amount); err != nil {
		return nil, err
	}
	if len(img.Body) == 0 {
		return nil, apperrors.NewValidationError("image", "an image file is required")
	}
	if err := validation.ValidateImageType(img.ContentType); err != nil {
		return nil, apperrors.NewValidationError("image", err.Error())
	}

	url, err := s.artwork.Put(ctx, objectstore.ArtworkKey(def.Name, img.Filename), img.ContentType, img.Body)
	if err != nil {
		return nil, apperrors.NewStorageError("upload artwork", err)
	}
	def.ImageURL = url
	def.Name = strings.TrimSpace(def.Name)
	def.Description = strings.TrimSpace(def.Description)

	now := s.now()
	items := make([]*domain.Item, amount)
	for i := range items {
		items[i] = def.NewItem(now)
	}

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.CreateItems(ctx, items)
	})
	if err != nil {
		if derr := s.artwork.Delete(ctx, url); derr != nil {
			s.log.Warn().Err(derr).Str("url", url).Msg("Failed to remove orphaned artwork")
		}
		return nil, apperrors.NewDatabaseError("mint items", err)
	}

	s.log.Info().Str("name", def.Name).Int("amount", amount).Str("image", url).Msg("Items minted")
	return items, nil
}

func validateDefinition(def domain.ItemDefinition, amount int) error {
	checks := []struct {
		field string
		err   error
	}{
		{"name", validation.ValidateName(def.Name)},
		{"description", validation.ValidateDescription(def.Description)},
		{"price", validation.ValidatePrice(def.Price)},
		{"gradientColor1", validation.ValidateHexColor(def.GradientColor1)},
		{"gradientColor2", validation.ValidateHexColor(def.GradientColor2)},
		{"amount", validation.ValidateMintAmount(amount)},
	}
	for _, c := range checks {
		if c.err != nil {
			return apperrors.NewValidationError(c.field, c.err.Error())
		}
	}
	return nil
}

// DeleteItem removes an item with its auctions, unpins it from its owner and drops the
// artwork once no other item references it.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	var imageURL string
	var orphaned bool
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		item, err := tx.LockItem(ctx, itemID)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewItemNotFoundError(itemID)
		}
		if err != nil {
			return err
		}
		if err := tx.ClearPinnedItem(ctx, itemID); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		imageURL = item.ImageURL
		if imageURL == "" {
			return nil
		}
		n, err := tx.CountItemsWithImage(ctx, imageURL)
		if err != nil {
			return err
		}
		orphaned = n == 0
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.NewDatabaseError("delete item", err)
	}

	if orphaned {
		if err := s.artwork.Delete(ctx, imageURL); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
			s.log.Warn().Err(err).Str("url", imageURL).Msg("Failed to delete artwork")
		}
	}
	s.log.Info().Int64("nft_id", itemID).Msg("Item deleted")
	return nil
}

// SetBalance overwrites the balance of the user with the given username.
func (s *Service) SetBalance(ctx context.Context, username string, balance int64) (*domain.User, error) {
	username = validation.NormalizeUsername(username)
	if username == "" {
		return nil, apperrors.NewValidationError("username", "username cannot be empty")
	}
	if err := validation.ValidateBalance(balance); err != nil {
		return nil, apperrors.NewValidationError("balance", err.Error())
	}

	var out *domain.User
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := tx.UserByUsername(ctx, username)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewNotFoundError("user", username)
		}
		if err != nil {
			return err
		}
		locked, err := tx.LockUsers(ctx, u.ID)
		if err != nil {
			return err
		}
		out = locked[u.ID]
		return ledger.Set(ctx, tx, out, balance)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewDatabaseError("set balance", err)
	}
	s.log.Info().Str("username", username).Int64("balance", balance).Msg("Balance set by admin")
	return out, nil
}
