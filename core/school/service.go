package school

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	msgEmailExists      = "a school with this email already exists"
	msgSchoolNameExists = "a school with this name already exists"

	errPasswordPolicy = errors.New("password does not meet the password policy")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, school School) (School, error)
		GetSchool(ctx context.Context, filter Filter) (School, error)
		UpdateSchool(ctx context.Context, school School) (School, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		mailSvc  core.EmailService
	}
)

func NewService(repo Repository, validate *validator.Validate, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, validate: validate, mailSvc: mailSvc}
}

func (svc *Service) checkUniqueness(ctx context.Context, email, schoolName string) error {
	if _, err := svc.repo.GetSchool(ctx, Filter{Email: email}); err == nil {
		return core.NewDuplicateKeyError("email", msgEmailExists)
	} else if !errors.Is(err, core.ErrNotFound) {
		return errors.Wrap(err, "checking email")
	}

	if _, err := svc.repo.GetSchool(ctx, Filter{SchoolName: schoolName}); err == nil {
		return core.NewDuplicateKeyError("school_name", msgSchoolNameExists)
	} else if !errors.Is(err, core.ErrNotFound) {
		return errors.Wrap(err, "checking school name")
	}
	return nil
}

// Register creates a School with its admin credentials and sends them a welcome email.
func (svc *Service) Register(ctx context.Context, ns NewSchool) (School, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return School{}, err
	}
	if err := svc.checkUniqueness(ctx, ns.Email, ns.SchoolName); err != nil {
		return School{}, err
	}

	now := time.Now().UTC()
	sch := School{
		Name:       ns.Name,
		SchoolName: ns.SchoolName,
		Email:      ns.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := sch.SetPassword(ns.Password); err != nil {
		return School{}, err
	}
	sch, err := svc.repo.CreateSchool(ctx, sch)
	if err != nil {
		return School{}, errors.Wrap(err, "creating school")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: sch.Name, Address: sch.Email}},
		Subject:      "Welcome to " + sch.SchoolName,
		TemplateName: "school_welcome",
		TemplateData: sch,
	})
	return sch, nil
}

func (svc *Service) Authenticate(ctx context.Context, l Login) (School, error) {
	if err := l.Validate(svc.validate); err != nil {
		return School{}, err
	}
	sch, err := svc.repo.GetSchool(ctx, Filter{Email: l.Email})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return School{}, core.ErrInvalidCredentials
		}
		return School{}, errors.Wrap(err, "finding school by email")
	}
	if err = sch.CheckPassword(l.Password); err != nil {
		return School{}, core.ErrInvalidCredentials
	}

	sch.LastLogin = time.Now().UTC()
	sch, err = svc.repo.UpdateSchool(ctx, sch)
	return sch, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) Get(ctx context.Context, actor core.Actor, id string) (School, error) {
	if !actor.CanAccess(id) {
		return School{}, core.NewNotFoundError("school")
	}
	return svc.repo.GetSchool(ctx, Filter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (School, error) {
	return svc.repo.GetSchool(ctx, Filter{Email: core.CleanString(email, true /* lower */)})
}

// ResetPassword sets a new admin password, bypassing the old one (admin CLI).
func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	sch, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if tag := core.ValidatePassword(pwd, sch.Name, sch.SchoolName, sch.Email); tag != "" {
		return core.NewValidationError(errPasswordPolicy, core.FieldError{Field: "password", Error: tag})
	}
	if err = sch.SetPassword(pwd); err != nil {
		return err
	}
	sch.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateSchool(ctx, sch)
	return errors.Wrap(err, "updating school")
}
