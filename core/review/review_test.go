package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/review"
	inmemdb "github.com/memoraid/memoraid/storage/database/inmem"
)

func TestNewReview_Validate(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	tests := []struct {
		name    string
		nr      review.NewReview
		wantErr bool
	}{
		{"valid", review.NewReview{Name: " Ada ", Stars: 5, Comment: " Great "}, false},
		{"no comment", review.NewReview{Name: "Ada", Stars: 1}, false},
		{"blank name", review.NewReview{Name: "   ", Stars: 3}, true},
		{"no stars", review.NewReview{Name: "Ada"}, true},
		{"too many stars", review.NewReview{Name: "Ada", Stars: 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nr.Validate(validate)
			assert.Equal(t, tt.wantErr, err != nil, err)
		})
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := review.NewService(inmemdb.NewReviewRepository(inmemdb.NewDB()))

	orig := core.NowFunc
	t.Cleanup(func() { core.NowFunc = orig })

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < review.ListLimit+2; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		core.NowFunc = func() time.Time { return now }
		_, err := svc.Create(ctx, review.NewReview{Name: "Reader", Stars: 4})
		require.NoError(t, err)
	}

	revs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, revs, review.ListLimit)
	assert.Equal(t, base.Add(time.Duration(review.ListLimit+1)*time.Minute), revs[0].CreatedAt)
	assert.True(t, revs[0].CreatedAt.After(revs[1].CreatedAt))
}
