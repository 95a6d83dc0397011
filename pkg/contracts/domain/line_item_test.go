package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaturityBucketDays(t *testing.T) {
	tests := []struct {
		bucket   MaturityBucket
		days     int
		within30 bool
	}{
		{MaturityOvernight, 0, true},
		{Maturity2To7Days, 2, true},
		{Maturity8To30Days, 8, true},
		{Maturity31To90Days, 31, false},
		{Maturity91To180Days, 91, false},
		{Maturity181To365, 181, false},
		{MaturityOver1Year, 366, false},
		{MaturityOpen, 0, true},
		{MaturityBucket("someday"), 366, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.bucket), func(t *testing.T) {
			assert.Equal(t, tt.days, tt.bucket.Days())
			item := LineItem{MaturityBucket: tt.bucket}
			assert.Equal(t, tt.within30, item.MaturesWithin(30))
		})
	}

	assert.False(t, MaturityBucket("someday").IsValid())
	assert.True(t, MaturityOpen.IsValid())
}

func TestCategory(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.IsValid(), c)
	}
	assert.False(t, Category("equity").IsValid())
	assert.True(t, CategoryCreditFacilities.IsFacility())
	assert.True(t, CategoryLiquidityFacilities.IsFacility())
	assert.False(t, CategoryLoans.IsFacility())
}

func TestHQLALevelString(t *testing.T) {
	assert.Equal(t, "level1", HQLALevel1.String())
	assert.Equal(t, "level2a", HQLALevel2A.String())
	assert.Equal(t, "level2b", HQLALevel2B.String())
	assert.Equal(t, "none", HQLALevelNone.String())
}

func TestSubmissionStatusIsTerminal(t *testing.T) {
	assert.True(t, SubmissionStatusCalculated.IsTerminal())
	assert.True(t, SubmissionStatusValidationFailed.IsTerminal())
	assert.True(t, SubmissionStatusFailed.IsTerminal())
	assert.False(t, SubmissionStatusValidating.IsTerminal())
	assert.False(t, SubmissionStatusPending.IsTerminal())
}
