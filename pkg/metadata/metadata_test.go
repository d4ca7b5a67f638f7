package metadata

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/internal/pinboardtest"
	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
)

func TestExportReturnsBodyUnmodified(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw")
	defer srv.Close()
	srv.Metadata = []byte(`[{"href":"https://a.example/","hash":"1"},  {"href":"https://b.example/","hash":"2"}]`)

	e := NewExporter(srv.APIURL(), 5*time.Second, logger.NewNopLogger())
	data, err := e.Export(context.Background(), "alice", "pw")
	require.NoError(t, err)

	assert.Equal(t, srv.Metadata, data)
	n, err := Summarize(data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExportBadCredentials(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw")
	defer srv.Close()

	e := NewExporter(srv.APIURL()+"/", 5*time.Second, logger.NewNopLogger())
	data, err := e.Export(context.Background(), "alice", "wrong")
	assert.Nil(t, data)
	require.Error(t, err)
	assert.True(t, pberrors.IsFetch(err))

	var pe *pberrors.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Code)
}

func TestExportUnreachable(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw")
	url := srv.APIURL()
	srv.Close()

	_, err := NewExporter(url, time.Second, logger.NewNopLogger()).Export(context.Background(), "alice", "pw")
	assert.True(t, pberrors.IsFetch(err))
}

func TestSummarizeRejectsGarbage(t *testing.T) {
	_, err := Summarize([]byte("<html>"))
	assert.True(t, pberrors.IsType(err, pberrors.ErrorTypeParsing))
}
