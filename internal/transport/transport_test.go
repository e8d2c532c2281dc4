// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInboundMessage_IsCronRequiresRawFlag(t *testing.T) {
	plain := InboundMessage{Text: "hi"}
	assert.False(t, plain.IsCron())
	assert.Empty(t, plain.CronJobID())

	cron := InboundMessage{Raw: map[string]interface{}{"cron": true, "jobId": "job-1"}}
	assert.True(t, cron.IsCron())
	assert.Equal(t, "job-1", cron.CronJobID())

	notCron := InboundMessage{Raw: map[string]interface{}{"cron": false, "jobId": "job-1"}}
	assert.False(t, notCron.IsCron())
}
