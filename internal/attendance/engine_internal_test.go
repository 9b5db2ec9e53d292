package attendance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordFailureHidesStoreErrors(t *testing.T) {
	err := errors.New(`pq: relation "attendance" does not exist`)

	msg := recordFailure(context.Background(), "s-1", err)
	assert.Equal(t, "Error processing record for student s-1", msg)
	assert.NotContains(t, msg, "relation")

	assert.Equal(t, "Error processing record", recordFailure(context.Background(), "", err))
}
