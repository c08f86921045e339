package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/storage"
	testutil "github.com/trezcool/darasa/tests"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()

	t.Run("memory", func(t *testing.T) {
		stores, err := storage.Open(ctx, conf, testutil.NewLogger())
		require.NoError(t, err)
		defer stores.Close()

		assert.Nil(t, stores.SQL)
		sch := testutil.CreateSchool(t, stores.Schools, "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
		class := testutil.CreateClass(t, stores.Academic, sch.ID, "Grade 1")
		assert.Equal(t, sch.ID, class.SchoolID)
	})

	t.Run("unknown engine", func(t *testing.T) {
		c := *conf
		c.Database.Engine = "sqlite"
		_, err := storage.Open(ctx, &c, testutil.NewLogger())
		assert.EqualError(t, err, `unknown database engine "sqlite"`)
	})
}
