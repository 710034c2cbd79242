package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrQRCodeNotFound   = errors.New("qr code not found")
	ErrQRCodeExists     = errors.New("qr code already exists")
	ErrQRCodeInactive   = errors.New("qr code is not active")
	ErrScanLimitReached = errors.New("qr code scan limit reached")
	ErrUserNotFound     = errors.New("user not found")
	ErrCacheMiss        = errors.New("cache miss")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
