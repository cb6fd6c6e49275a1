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
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicSpec describes the topic created at startup. Negative values use the
// broker defaults.
type TopicSpec struct {
	Partitions        int32
	ReplicationFactor int16
}

var DefaultTopicSpec = TopicSpec{Partitions: -1, ReplicationFactor: -1}

type topicCreator interface {
	CreateTopics(
		ctx context.Context,
		partitions int32,
		replicationFactor int16,
		configs map[string]*string,
		topics ...string,
	) (kadm.CreateTopicResponses, error)
}

// EnsureTopic creates topic if it does not already exist
func EnsureTopic(
	ctx context.Context,
	client *kgo.Client,
	topic string,
	spec TopicSpec,
) error {
	return ensureTopic(ctx, kadm.NewClient(client), topic, spec)
}

func ensureTopic(
	ctx context.Context,
	adm topicCreator,
	topic string,
	spec TopicSpec,
) error {
	resps, err := adm.CreateTopics(
		ctx,
		spec.Partitions,
		spec.ReplicationFactor,
		nil,
		topic,
	)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	resp, ok := resps[topic]
	if !ok {
		return fmt.Errorf("create topic %s: no response from broker", topic)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
