package tools

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/analysis"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/auth"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/sheets"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/storage"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/mcperr"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/validation"
)

// Store contracts consumed by the handlers; satisfied by the storage
// package and faked in tests.

type HistoryStore interface {
	Save(h storage.History) (storage.History, error)
	GetLatest() (storage.History, error)
	GetByTimestamp(timestamp string) (storage.History, error)
	GetAll() ([]storage.History, error)
	DeleteByTimestamp(timestamp string) error
	DeleteByID(id int64) error
}

type FileStore interface {
	Save(f storage.File) (storage.File, error)
	FindByFilename(filename string) (storage.File, error)
	FindByTimestamp(timestamp string) (storage.File, error)
	GetAll() ([]storage.File, error)
	DeleteByTimestamp(timestamp string) error
}

type UserStore interface {
	Create(u storage.User) (storage.User, error)
	GetAll() ([]storage.User, error)
	FindByEmail(email string) (storage.User, error)
	FindByID(id int64) (storage.User, error)
	Delete(id int64) error
	UpdateEmail(id int64, email string) error
	UpdateRole(id int64, role string) error
}

// Analyses schedules background analysis passes.
type Analyses interface {
	Trigger(opts analysis.Options, notify analysis.Reporter) error
}

// Service executes tool calls against the collaborators.
type Service struct {
	Source   sheets.DataSource
	History  HistoryStore
	Files    FileStore
	Users    UserStore
	Auth     auth.Verifier
	Cache    *analysis.Cache
	Analyses Analyses
}

// Call runs the named synchronous tool. The name is checked against the
// catalog before any argument decoding or collaborator access. Background
// tools are not callable here; route them through Trigger.
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool, ok := Lookup(name)
	if !ok {
		return nil, mcperr.New(mcperr.Validation, "Tool '%s' unknown.", name)
	}
	if tool.Background {
		return nil, mcperr.New(mcperr.Validation, "Tool '%s' must be scheduled, not called synchronously.", name)
	}

	log.Ctx(ctx).Debug().Str("tool", name).Msg("executing tool")

	switch name {
	case "query_assets":
		return s.queryAssets(ctx, args)
	case "query_resource":
		return s.queryResource(ctx, args)
	case "save_analysis":
		return s.saveAnalysis(ctx, args)
	case "get_dashboard_data":
		return s.getDashboardData(ctx, args)
	case "get_stats_data":
		return s.getStatsData(ctx, args)
	case "get_master_data":
		return s.getMasterData(ctx, args)
	case "get_sheet_names":
		return s.getSheetNames(ctx)
	case "get_history":
		return s.getHistory(ctx)
	case "delete_history":
		return s.deleteHistory(ctx, args)
	case "get_all_users":
		return s.getAllUsers(ctx)
	case "create_user":
		return s.createUser(ctx, args)
	case "delete_user":
		return s.deleteUser(ctx, args)
	case "update_user_email":
		return s.updateUserEmail(ctx, args)
	case "update_user_role":
		return s.updateUserRole(ctx, args)
	default:
		return nil, mcperr.New(mcperr.Internal, "tool '%s' has no handler", name)
	}
}

// Trigger schedules the background analysis tool. notify receives phase
// transitions; the caller gets no synchronous result.
func (s *Service) Trigger(args json.RawMessage, notify analysis.Reporter) error {
	var opts analysis.Options
	if err := decodeArgs(args, &opts); err != nil {
		return err
	}
	if err := s.Analyses.Trigger(opts, notify); err != nil {
		return mcperr.Wrap(mcperr.Execution, err, "%v", err)
	}
	return nil
}

// decodeArgs unmarshals tool arguments into dst and applies the struct's
// validation rules.
func decodeArgs(args json.RawMessage, dst any) error {
	if len(args) > 0 {
		if err := json.Unmarshal(args, dst); err != nil {
			return mcperr.Wrap(mcperr.Validation, err, "Malformed tool arguments.")
		}
	}
	if msg := validation.ValidateStruct(dst); msg != "" {
		return mcperr.New(mcperr.Validation, "%s", msg)
	}
	return nil
}
