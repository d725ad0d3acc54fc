package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"vu/ase/roverconsole/src/command"

	zmq "github.com/pebbe/zmq4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Tap mirrors dispatched drive commands to local subscribers, e.g. loggers or a second operator screen
type Tap struct {
	queue   chan command.Command
	dropped atomic.Uint64
}

func NewTap(size int) *Tap {
	return &Tap{queue: make(chan command.Command, size)}
}

// Queue a command without blocking. When the publisher lags behind the command is dropped
func (t *Tap) Offer(cmd command.Command) {
	select {
	case t.queue <- cmd:
	default:
		t.dropped.Add(1)
	}
}

func (t *Tap) Dropped() uint64 {
	return t.dropped.Load()
}

// Encode a command as a protobuf Struct, so that subscribers need no custom schema
func Encode(cmd command.Command, sentAt time.Time) ([]byte, error) {
	fields := map[string]any{
		"speed":     cmd.Speed,
		"direction": nil,
		"turning":   nil,
		"sent_at":   sentAt.UTC().Format(time.RFC3339Nano),
	}
	if cmd.Direction != "" {
		fields["direction"] = string(cmd.Direction)
	}
	if cmd.Turning != "" {
		fields["turning"] = string(cmd.Turning)
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "building command struct")
	}
	return proto.Marshal(msg)
}

// Decode is the inverse of Encode, used by subscribers written in Go
func Decode(data []byte) (command.Command, error) {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return command.Command{}, errors.Wrap(err, "decoding command struct")
	}

	fields := msg.GetFields()
	cmd := command.Command{
		Speed:     int(fields["speed"].GetNumberValue()),
		Direction: command.Direction(fields["direction"].GetStringValue()),
		Turning:   command.Turning(fields["turning"].GetStringValue()),
	}
	return cmd, nil
}

// Publishes everything offered to the tap on a ZeroMQ PUB socket bound to address, until ctx is done
func (t *Tap) Run(ctx context.Context, address string) error {
	publisher, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return errors.Wrap(err, "creating publisher socket")
	}
	defer publisher.Close()

	if err = publisher.Bind(address); err != nil {
		return errors.Wrapf(err, "binding publisher to %s", address)
	}
	log.Info().Str("address", address).Msg("Command tap publishing")

	// Main publisher loop
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-t.queue:
			encodedMsg, err := Encode(cmd, time.Now())
			if err != nil {
				log.Err(err).Msg("Error while encoding command")
				continue
			}

			if _, err = publisher.SendBytes(encodedMsg, 0); err != nil {
				log.Err(err).Msg("Error while publishing command")
				continue
			}
		}
	}
}
