package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/plantmetrics/plant/pkg/db/pagination"
)

type DeclareRequest struct {
	DeclarerID          snowflake.ID
	ChapterID           *snowflake.ID
	Amount              string // currency-scale decimal, e.g. "5000" or "5000.50"
	Description         string
	SourceMemberID      *snowflake.ID
	BeneficiaryMemberID *snowflake.ID
}

type ListTradesRequest struct {
	pagination.Pagination
	DeclarerID snowflake.ID
	ChapterID  snowflake.ID
	Status     Status
}

type ListTradesResponse struct {
	pagination.PageInfo
	Trades []Detail `json:"trades"`
}

type Service interface {
	Declare(ctx context.Context, req DeclareRequest) (Trade, error)
	GetByID(ctx context.Context, id snowflake.ID) (Detail, error)
	List(ctx context.Context, req ListTradesRequest) (ListTradesResponse, error)
	// Cancel aborts a trade before resolution. Only pending trades can be
	// cancelled; the update is conditional so a racing settlement wins.
	Cancel(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrEmptyDescription   = errors.New("empty_description")
	ErrTradeNotFound      = errors.New("trade_not_found")
	ErrCounterpartUnknown = errors.New("counterpart_unknown")
	ErrNotCancellable     = errors.New("not_cancellable")
)
