package models

import (
	"time"
)

type QRCodeType string

const (
	QRCodeTypeStatic  QRCodeType = "static"
	QRCodeTypeDynamic QRCodeType = "dynamic"
)

type QRCodeSize string

const (
	QRCodeSizeSmall  QRCodeSize = "small"
	QRCodeSizeMedium QRCodeSize = "medium"
	QRCodeSizeLarge  QRCodeSize = "large"
)

type QRCodeStatus string

const (
	QRCodeStatusActive  QRCodeStatus = "active"
	QRCodeStatusLocked  QRCodeStatus = "locked"
	QRCodeStatusDeleted QRCodeStatus = "deleted"
)

type QRCode struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id,omitempty"`
	Name      string       `json:"name"`
	Type      QRCodeType   `json:"type"`
	TargetURL string       `json:"target_url"`
	Size      QRCodeSize   `json:"size"`
	Status    QRCodeStatus `json:"status"`
	ScanCount int64        `json:"scan_count"`
	MaxScans  int64        `json:"max_scans"` // 0 means unlimited
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// LimitReached reports whether the scan limit, if any, has been consumed.
func (q *QRCode) LimitReached() bool {
	return q.MaxScans > 0 && q.ScanCount >= q.MaxScans
}

type CreateQRCodeInput struct {
	UserID    string
	Name      string
	Type      QRCodeType
	TargetURL string
	Size      QRCodeSize
	MaxScans  int64
}
