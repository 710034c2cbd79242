package service

import (
	"context"
	"errors"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
)

// UserService интерфейс сервиса пользовательских настроек
type UserService interface {
	// GetTimezone возвращает "", если пояс не задан
	GetTimezone(ctx context.Context, userID string) (string, error)
	SetTimezone(ctx context.Context, userID, timezone string) error
}

// userService реализация UserService
type userService struct {
	userRepo repository.UserRepository
}

// NewUserService создаёт новый экземпляр сервиса
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetTimezone возвращает сохранённый часовой пояс пользователя
func (s *userService) GetTimezone(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	return user.Timezone, nil
}

// SetTimezone проверяет и сохраняет часовой пояс пользователя
func (s *userService) SetTimezone(ctx context.Context, userID, timezone string) error {
	if _, err := calendar.Location(timezone); err != nil {
		return err
	}
	return s.userRepo.SetTimezone(ctx, userID, timezone)
}
