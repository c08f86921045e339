package board

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/school"
)

type (
	Repository interface {
		CreateNotice(ctx context.Context, notice Notice) (Notice, error)
		GetNotice(ctx context.Context, id string) (Notice, error)
		QueryNotices(ctx context.Context, schoolID string) ([]Notice, error)
		UpdateNotice(ctx context.Context, notice Notice) (Notice, error)
		DeleteNotices(ctx context.Context, filter NoticeFilter) (int, error)

		CreateComplain(ctx context.Context, complain Complain) (Complain, error)
		QueryComplains(ctx context.Context, schoolID string) ([]Complain, error)
	}

	Service struct {
		repo     Repository
		schools  school.Repository
		validate *validator.Validate
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	schools school.Repository,
	validate *validator.Validate,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, schools: schools, validate: validate, mailSvc: mailSvc, logger: logger}
}

func dateOrToday(d core.Date) time.Time {
	if d.IsZero() {
		return core.StartOfDay(time.Now().UTC())
	}
	return d.Time
}

// Notices

func (svc *Service) CreateNotice(ctx context.Context, actor core.Actor, nn NewNotice) (Notice, error) {
	if err := academic.CheckManager(actor, actor.SchoolID); err != nil {
		return Notice{}, err
	}
	if err := nn.Validate(svc.validate); err != nil {
		return Notice{}, err
	}

	now := time.Now().UTC()
	notice, err := svc.repo.CreateNotice(ctx, Notice{
		SchoolID:    actor.SchoolID,
		Title:       nn.Title,
		Description: nn.Description,
		Date:        dateOrToday(nn.Date),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return notice, errors.Wrap(err, "creating notice")
}

func (svc *Service) getNotice(ctx context.Context, actor core.Actor, id string) (Notice, error) {
	notice, err := svc.repo.GetNotice(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	if !actor.CanAccess(notice.SchoolID) {
		return Notice{}, core.NewNotFoundError("notice")
	}
	return notice, nil
}

func (svc *Service) GetNotice(ctx context.Context, actor core.Actor, id string) (Notice, error) {
	return svc.getNotice(ctx, actor, id)
}

func (svc *Service) QueryNotices(ctx context.Context, actor core.Actor, schoolID string) ([]Notice, error) {
	if !actor.CanAccess(schoolID) {
		return nil, core.NewNotFoundError("school")
	}
	notices, err := svc.repo.QueryNotices(ctx, schoolID)
	return notices, errors.Wrap(err, "querying notices")
}

func (svc *Service) UpdateNotice(ctx context.Context, actor core.Actor, id string, un UpdateNotice) (Notice, error) {
	notice, err := svc.getNotice(ctx, actor, id)
	if err != nil {
		return Notice{}, err
	}
	if err = academic.CheckManager(actor, notice.SchoolID); err != nil {
		return Notice{}, err
	}
	if err = un.Validate(notice, svc.validate); err != nil {
		return Notice{}, err
	}

	notice.Title = un.Title
	notice.Description = un.Description
	notice.Date = un.Date.Time
	notice.UpdatedAt = time.Now().UTC()
	notice, err = svc.repo.UpdateNotice(ctx, notice)
	return notice, errors.Wrap(err, "updating notice")
}

func (svc *Service) DeleteNotice(ctx context.Context, actor core.Actor, id string) (Notice, error) {
	notice, err := svc.getNotice(ctx, actor, id)
	if err != nil {
		return Notice{}, err
	}
	if err = academic.CheckManager(actor, notice.SchoolID); err != nil {
		return Notice{}, err
	}
	if _, err = svc.repo.DeleteNotices(ctx, NoticeFilter{IDs: []string{notice.ID}}); err != nil {
		return Notice{}, errors.Wrap(err, "deleting notice")
	}
	return notice, nil
}

// DeleteNoticesForSchool removes every notice of a school; NotFound when there are none.
func (svc *Service) DeleteNoticesForSchool(ctx context.Context, actor core.Actor, schoolID string) (int, error) {
	if err := academic.CheckManager(actor, schoolID); err != nil {
		return 0, err
	}
	n, err := svc.repo.DeleteNotices(ctx, NoticeFilter{SchoolID: schoolID})
	if err != nil {
		return 0, errors.Wrap(err, "deleting notices")
	}
	if n == 0 {
		return 0, core.NewNotFoundError("notices")
	}
	return n, nil
}

// Complains

// CreateComplain files a complain from a student or a teacher and notifies the school admin.
func (svc *Service) CreateComplain(ctx context.Context, actor core.Actor, nc NewComplain) (Complain, error) {
	if !(actor.IsStudent() || actor.IsTeacher()) || actor.SchoolID == "" {
		return Complain{}, core.ErrForbidden
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Complain{}, err
	}

	complain, err := svc.repo.CreateComplain(ctx, Complain{
		SchoolID:    actor.SchoolID,
		AuthorID:    actor.ID,
		AuthorRole:  actor.Role,
		Title:       nc.Title,
		Description: nc.Description,
		Date:        dateOrToday(nc.Date),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Complain{}, errors.Wrap(err, "creating complain")
	}

	if sch, err := svc.schools.GetSchool(ctx, school.Filter{ID: complain.SchoolID}); err == nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: sch.Name, Address: sch.Email}},
			Subject:      "New complain: " + complain.Title,
			TemplateName: "complain_received",
			TemplateData: struct {
				Complain
				Date string
			}{complain, complain.Date.Format(core.DateLayout)},
		})
	} else {
		svc.logger.Warn("complain notification not sent", errors.Wrap(err, "finding school"), actor)
	}
	return complain, nil
}

func (svc *Service) QueryComplains(ctx context.Context, actor core.Actor, schoolID string) ([]Complain, error) {
	if err := academic.CheckManager(actor, schoolID); err != nil {
		return nil, err
	}
	complains, err := svc.repo.QueryComplains(ctx, schoolID)
	return complains, errors.Wrap(err, "querying complains")
}
