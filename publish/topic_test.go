// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

type fakeAdmin struct {
	resps      kadm.CreateTopicResponses
	err        error
	partitions int32
	replicas   int16
	topics     []string
}

func (f *fakeAdmin) CreateTopics(
	_ context.Context,
	partitions int32,
	replicationFactor int16,
	_ map[string]*string,
	topics ...string,
) (kadm.CreateTopicResponses, error) {
	f.partitions = partitions
	f.replicas = replicationFactor
	f.topics = topics
	return f.resps, f.err
}

func TestEnsureTopic(t *testing.T) {
	testDefs := []struct {
		name    string
		admin   *fakeAdmin
		wantErr bool
	}{
		{
			name: "created",
			admin: &fakeAdmin{resps: kadm.CreateTopicResponses{
				"t": {Topic: "t"},
			}},
		},
		{
			name: "already exists",
			admin: &fakeAdmin{resps: kadm.CreateTopicResponses{
				"t": {Topic: "t", Err: kerr.TopicAlreadyExists},
			}},
		},
		{
			name: "broker error",
			admin: &fakeAdmin{resps: kadm.CreateTopicResponses{
				"t": {Topic: "t", Err: kerr.TopicAuthorizationFailed},
			}},
			wantErr: true,
		},
		{
			name:    "request error",
			admin:   &fakeAdmin{err: errors.New("dial failed")},
			wantErr: true,
		},
		{
			name:    "missing response",
			admin:   &fakeAdmin{resps: kadm.CreateTopicResponses{}},
			wantErr: true,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := ensureTopic(
				context.Background(),
				testDef.admin,
				"t",
				TopicSpec{Partitions: 3, ReplicationFactor: 1},
			)
			if testDef.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int32(3), testDef.admin.partitions)
			assert.Equal(t, int16(1), testDef.admin.replicas)
			assert.Equal(t, []string{"t"}, testDef.admin.topics)
		})
	}
}
