package broker

import (
	"time"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

type HeartbeatPublisher interface {
	PublishHeartbeat(hb comm.ServiceHeartbeat) error
}

// StartHeartbeat announces the service instance every interval until the
// returned scheduler is shut down. The first beat is sent immediately.
func StartHeartbeat(p HeartbeatPublisher, service, instanceID string, every time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(beat, p, service, instanceID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}

func beat(p HeartbeatPublisher, service, instanceID string) {
	hb := comm.ServiceHeartbeat{
		ID:        instanceID,
		Service:   service,
		Timestamp: time.Now().UTC(),
	}
	if err := p.PublishHeartbeat(hb); err != nil {
		log.Warnf("[Heartbeat] publish failed: %v", err)
	}
}
