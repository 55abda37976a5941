package application

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/domain/entity"
	repo "github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/query"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 50
)

// PhotoStorage stores profile photos and returns their public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

// AccountSearcher looks accounts up by free text.
type AccountSearcher interface {
	Search(ctx context.Context, text string, size int) ([]*entity.Account, error)
}

// AccountService covers profile self-service and admin account management.
// Photos and Search are optional; when nil the matching operations report
// ServiceUnavailable.
type AccountService struct {
	Repo   repo.AccountRepository
	Photos PhotoStorage
	Search AccountSearcher
	Logger *logrus.Logger
}

func NewAccountService(r repo.AccountRepository, photos PhotoStorage, search AccountSearcher, logger *logrus.Logger) *AccountService {
	return &AccountService{Repo: r, Photos: photos, Search: search, Logger: logger}
}

// ProfileInput carries self-service changes. Password fields are present so
// that attempts to change the password here can be rejected explicitly.
type ProfileInput struct {
	Name            *string
	Email           *string
	Password        *string
	PasswordConfirm *string
}

// AdminUpdateInput carries admin changes. There is no password field.
type AdminUpdateInput struct {
	Name   *string
	Email  *string
	Role   *string
	Active *bool
}

func (s *AccountService) GetMe(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "account not found")
	}
	return a, nil
}

// UpdateMe changes name and email only.
func (s *AccountService) UpdateMe(ctx context.Context, id string, in ProfileInput) (*entity.Account, error) {
	if in.Password != nil || in.PasswordConfirm != nil {
		return nil, apperror.New(apperror.KindValidation,
			"this route is not for password updates, please use /updateMyPassword")
	}

	fields := map[string]string{}
	var patch entity.AccountPatch
	bad := map[string]string{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			bad["name"] = "must not be empty"
		}
		fields["name"] = name
		patch.Name = &name
	}
	if in.Email != nil {
		email := entity.NormalizeEmail(*in.Email)
		if email == "" {
			bad["email"] = "must not be empty"
		}
		fields["email"] = email
		patch.Email = &email
	}
	for k, v := range ProfileRules().Validate(fields) {
		if _, seen := bad[k]; !seen {
			bad[k] = v
		}
	}
	if len(bad) > 0 {
		return nil, apperror.Validation(bad)
	}
	if patch.Empty() {
		return s.GetMe(ctx, id)
	}

	a, err := s.Repo.UpdateFields(ctx, id, patch)
	if err != nil {
		return nil, storeError(err, "account not found")
	}
	return a, nil
}

// DeleteMe deactivates the account. The record is kept.
func (s *AccountService) DeleteMe(ctx context.Context, id string) error {
	inactive := false
	if _, err := s.Repo.UpdateFields(ctx, id, entity.AccountPatch{Active: &inactive}); err != nil {
		return storeError(err, "account not found")
	}
	s.Logger.WithField("account_id", id).Info("account deactivated")
	return nil
}

// UploadPhoto stores an image under photos/<account>/<uuid><ext> and saves
// its URL on the account.
func (s *AccountService) UploadPhoto(ctx context.Context, id string, r io.Reader, filename, contentType string) (*entity.Account, error) {
	if s.Photos == nil {
		return nil, apperror.New(apperror.KindServiceUnavailable, "photo storage is not configured")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, apperror.Validation(map[string]string{"photo": "must be an image"})
	}
	if _, err := s.GetMe(ctx, id); err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(filename))
	objectPath := path.Join("photos", id, uuid.NewString()+ext)
	url, err := s.Photos.Upload(ctx, objectPath, mediaType, r)
	if err != nil {
		s.Logger.WithError(err).WithField("account_id", id).Error("photo upload failed")
		return nil, apperror.Wrap(err, apperror.KindServiceUnavailable, "could not store the photo, try again later")
	}
	a, err := s.Repo.UpdateFields(ctx, id, entity.AccountPatch{Photo: &url})
	if err != nil {
		return nil, storeError(err, "account not found")
	}
	return a, nil
}

// List runs spec against all accounts. Inactive accounts are included only
// when includeInactive is set.
func (s *AccountService) List(ctx context.Context, spec query.Spec, includeInactive bool) (query.Result, error) {
	var opts []repo.FindOption
	if includeInactive {
		opts = append(opts, repo.IncludeInactive())
	}
	res, err := s.Repo.List(ctx, spec, opts...)
	if err != nil {
		return query.Result{}, storeError(err, "account not found")
	}
	return res, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.Repo.FindByID(ctx, id, repo.IncludeInactive())
	if err != nil {
		return nil, storeError(err, "no account found with that id")
	}
	return a, nil
}

// Update applies an admin patch. Passwords only change through the session flows.
func (s *AccountService) Update(ctx context.Context, id string, in AdminUpdateInput) (*entity.Account, error) {
	fields := map[string]string{}
	var patch entity.AccountPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		fields["name"] = name
		patch.Name = &name
	}
	if in.Email != nil {
		email := entity.NormalizeEmail(*in.Email)
		fields["email"] = email
		patch.Email = &email
	}
	if in.Role != nil {
		fields["role"] = *in.Role
	}
	if in.Active != nil {
		fields["active"] = strconv.FormatBool(*in.Active)
		patch.Active = in.Active
	}
	bad := AdminUpdateRules().Validate(fields)
	if in.Name != nil && fields["name"] == "" {
		if bad == nil {
			bad = map[string]string{}
		}
		bad["name"] = "must not be empty"
	}
	if bad != nil {
		return nil, apperror.Validation(bad)
	}
	if in.Role != nil {
		role, err := entity.ParseRole(*in.Role)
		if err != nil {
			return nil, apperror.Validation(map[string]string{"role": err.Error()})
		}
		patch.Role = &role
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	a, err := s.Repo.UpdateFields(ctx, id, patch, repo.IncludeInactive())
	if err != nil {
		return nil, storeError(err, "no account found with that id")
	}
	return a, nil
}

// Delete removes the account permanently.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return storeError(err, "no account found with that id")
	}
	s.Logger.WithField("account_id", id).Info("account deleted")
	return nil
}

// SearchAccounts queries the search index. size is clamped to [1, 50].
func (s *AccountService) SearchAccounts(ctx context.Context, text string, size int) ([]*entity.Account, error) {
	if s.Search == nil {
		return nil, apperror.New(apperror.KindServiceUnavailable, "account search is not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Validation(map[string]string{"q": "is required"})
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}
	out, err := s.Search.Search(ctx, text, size)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.Logger.WithError(err).Warn("account search failed")
		return nil, apperror.Wrap(err, apperror.KindServiceUnavailable, "account search is unavailable")
	}
	return out, nil
}
