package board_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/board"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

type fixture struct {
	svc     *board.Service
	mailSvc *emailsvc.ConsoleServiceMock

	admin, otherAdmin, student core.Actor
}

func newFixture(t *testing.T) *fixture {
	db := inmemdb.Open()
	schools := inmemdb.NewSchoolRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), testutil.NewLogger())

	sch := testutil.CreateSchool(t, schools, "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	other := testutil.CreateSchool(t, schools, "John Roe", "Riverside", "john@riverside.edu", "")

	return &fixture{
		svc:        board.NewService(inmemdb.NewBoardRepository(db), schools, testutil.NewValidator(), mailSvc, testutil.NewLogger()),
		mailSvc:    mailSvc,
		admin:      sch.Actor(),
		otherAdmin: other.Actor(),
		student:    core.Actor{ID: "s1", Name: "Alice", SchoolID: sch.ID, Role: core.RoleStudent},
	}
}

func TestService_Notices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	notice, err := f.svc.CreateNotice(ctx, f.admin, board.NewNotice{
		Title:       " Sports day ",
		Description: "Bring your shoes",
		Date:        core.NewDate(testutil.Day(2024, 5, 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sports day", notice.Title)
	assert.Equal(t, testutil.Day(2024, 5, 1), notice.Date)

	today, err := f.svc.CreateNotice(ctx, f.admin, board.NewNotice{Title: "Exams", Description: "Next week"})
	require.NoError(t, err)
	assert.True(t, core.SameDay(time.Now().UTC(), today.Date))

	_, err = f.svc.CreateNotice(ctx, f.student, board.NewNotice{Title: "Party", Description: "!"})
	assert.True(t, errors.Is(err, core.ErrForbidden))

	// students read their school's notices
	notices, err := f.svc.QueryNotices(ctx, f.student, f.admin.SchoolID)
	require.NoError(t, err)
	assert.Len(t, notices, 2)
	_, err = f.svc.GetNotice(ctx, f.otherAdmin, notice.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	updated, err := f.svc.UpdateNotice(ctx, f.admin, notice.ID, board.UpdateNotice{Description: "Bring water too"})
	require.NoError(t, err)
	assert.Equal(t, "Sports day", updated.Title)
	assert.Equal(t, "Bring water too", updated.Description)
	assert.Equal(t, testutil.Day(2024, 5, 1), updated.Date)

	_, err = f.svc.DeleteNotice(ctx, f.admin, notice.ID)
	require.NoError(t, err)
	_, err = f.svc.GetNotice(ctx, f.admin, notice.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	// another school's notices look missing, not forbidden
	_, err = f.svc.DeleteNoticesForSchool(ctx, f.otherAdmin, f.admin.SchoolID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	n, err := f.svc.DeleteNoticesForSchool(ctx, f.admin, f.admin.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.svc.DeleteNoticesForSchool(ctx, f.admin, f.admin.SchoolID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestService_Complains(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	complain, err := f.svc.CreateComplain(ctx, f.student, board.NewComplain{
		Title:       "Broken chair",
		Description: "Room 12",
		Date:        core.NewDate(testutil.Day(2024, 2, 3)),
	})
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, complain.AuthorID)
	assert.Equal(t, core.RoleStudent, complain.AuthorRole)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@greenwood.edu", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Broken chair")
	assert.Contains(t, sent[0].TextContent, "2024-02-03")

	_, err = f.svc.CreateComplain(ctx, f.admin, board.NewComplain{Title: "x", Description: "y"})
	assert.True(t, errors.Is(err, core.ErrForbidden))

	complains, err := f.svc.QueryComplains(ctx, f.admin, f.admin.SchoolID)
	require.NoError(t, err)
	assert.Len(t, complains, 1)
	_, err = f.svc.QueryComplains(ctx, f.student, f.admin.SchoolID)
	assert.True(t, errors.Is(err, core.ErrForbidden))
	_, err = f.svc.QueryComplains(ctx, f.otherAdmin, f.admin.SchoolID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
