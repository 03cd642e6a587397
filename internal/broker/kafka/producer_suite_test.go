package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/LogiBox/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestNewProducer_KeyedWriter() {
	p := NewProducer([]string{"localhost:0"})
	w, ok := p.w.(*kafka.Writer)
	s.Require().True(ok)
	s.Require().IsType(&kafka.Hash{}, w.Balancer)
	s.Require().Equal(kafka.RequireAll, w.RequiredAcks)
}

func (s *ProducerSuite) TestPublish_CarrierUpdateKeyedByShipment() {
	update := messages.CarrierUpdate{
		TenantID:   "t1",
		ShipmentID: "sh-1",
		CheckedAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Events:     []messages.CarrierEvent{{Status: "IN_TRANSIT", StatusRaw: "in transit"}},
	}
	payload, err := json.Marshal(update)
	s.Require().NoError(err)

	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || msgs[0].Topic != "logistics.carrier_updates" || string(msgs[0].Key) != "sh-1" {
				return false
			}
			var got messages.CarrierUpdate
			return json.Unmarshal(msgs[0].Value, &got) == nil && got.TenantID == "t1" && len(got.Events) == 1
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "logistics.carrier_updates", []byte(update.ShipmentID), payload))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_BrokerErrorWrapped() {
	brokerDown := errors.New("dial tcp: connection refused")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(brokerDown).Once()

	err := s.p.Publish(context.Background(), "logistics.carrier_updates", []byte("sh-1"), []byte("{}"))
	s.Require().ErrorIs(err, brokerDown)
	s.Require().ErrorContains(err, "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestClose_WriterWithoutCloser() {
	s.Require().NoError(s.p.Close())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
