package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveQuery(t *testing.T) {
	ObserveQuery("SELECT 1", 3*time.Millisecond, nil)
	ObserveQuery("SELECT FROM", time.Millisecond, errors.New("syntax error"))

	// One series per status label.
	assert.Equal(t, 2, testutil.CollectAndCount(QueryDuration))
}

func TestChecksTotalLabels(t *testing.T) {
	ChecksTotal.WithLabelValues("pass").Add(2)
	ChecksTotal.WithLabelValues("bug").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(ChecksTotal.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ChecksTotal.WithLabelValues("bug")))
}
