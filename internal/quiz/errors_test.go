package quiz

import (
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTransient(t *testing.T) {
	require.NoError(t, Transient(nil, "load quiz"))

	err := Transient(sql.ErrConnDone, "load quiz")
	require.True(t, IsKind(err, KindTransientStore))
	require.Equal(t, "failed to load quiz, try again", Message(err))
	require.ErrorIs(t, err, sql.ErrConnDone)

	nf := NotFound("quiz not found")
	require.Same(t, nf, Transient(nf, "load quiz"))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindTransientStore, KindOf(errors.New("boom")))
	require.Equal(t, "something went wrong, try again", Message(errors.New("boom")))
	require.Equal(t, KindAlreadyAttempted, KindOf(errors.Wrap(ErrAlreadyAttempted, "start")))
	require.Equal(t, "not_available", KindNotAvailable.String())
	require.False(t, IsKind(nil, KindTransientStore))
}
