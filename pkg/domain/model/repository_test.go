package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

func TestRepository(t *testing.T) {
	t.Run("FullName", func(t *testing.T) {
		repo := model.Repository{
			Owner: "dlt-hub",
			Name:  "dlt",
		}

		gt.Equal(t, repo.FullName(), "dlt-hub/dlt")
	})

	t.Run("ParseRepository", func(t *testing.T) {
		repo := model.ParseRepository("dlt-hub/dlt")
		gt.Equal(t, repo.Owner, "dlt-hub")
		gt.Equal(t, repo.Name, "dlt")
	})

	t.Run("ParseRepository rejects malformed names", func(t *testing.T) {
		for _, s := range []string{"", "dlt", "/dlt", "dlt-hub/", "a/b/c"} {
			gt.Equal(t, model.ParseRepository(s), model.Repository{})
		}
	})
}
