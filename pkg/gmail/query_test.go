package gmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQueryDomainsAndKeywords(t *testing.T) {
	query := BuildQuery(
		[]string{"school.example.com", "notify.school.example.com"},
		[]string{"Room 4", "Newsletter"},
	)
	assert.Equal(t,
		`from:(school.example.com OR notify.school.example.com) OR ("Room 4" OR "Newsletter")`,
		query,
	)
}

func TestBuildQueryDomainsOnly(t *testing.T) {
	assert.Equal(t, "from:(a.com)", BuildQuery([]string{"a.com"}, nil))
}

func TestBuildQueryKeywordsOnly(t *testing.T) {
	assert.Equal(t, `("field trip")`, BuildQuery(nil, []string{"field trip"}))
}

func TestBuildQueryEmpty(t *testing.T) {
	assert.Equal(t, "", BuildQuery(nil, nil))
}
