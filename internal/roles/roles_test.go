package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	r, err := Parse(" Employer ")
	require.NoError(t, err)
	assert.Equal(t, Employer, r)

	r, err = Parse("freelancer")
	require.NoError(t, err)
	assert.Equal(t, Employee, r)

	_, err = Parse("admin")
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/employer/messages", Employer.MessagesPath())
	assert.Equal(t, "/employer/employee-profile/u2", Employer.ProfilePath("u2"))
	assert.Equal(t, "/employee/employer-profile/u1", Employee.ProfilePath("u1"))
}
