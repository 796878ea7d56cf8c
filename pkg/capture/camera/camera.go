// Package camera decodes QR codes from a local video device.
package camera

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/redromiee/bag-tracker/pkg/capture"
)

var log = logrus.StandardLogger().WithField("package", "capture/camera")

// Camera reads frames from a video device and yields each decoded QR payload.
// The same code held in front of the lens is reported once until a different
// code (or cooldown) is seen.
type Camera struct {
	deviceId int
	cooldown time.Duration
	life     lifecycle

	webcam   *gocv.VideoCapture
	detector gocv.QRCodeDetector
	frame    gocv.Mat
	points   gocv.Mat
	straight gocv.Mat

	code     string
	lastCode string
	lastSeen time.Time
	err      error
}

func New(deviceId int) *Camera {
	return &Camera{deviceId: deviceId, cooldown: 2 * time.Second}
}

func (c *Camera) Open() error {
	webcam, err := gocv.OpenVideoCapture(c.deviceId)
	if err != nil {
		return fmt.Errorf("open video device %d: %w", c.deviceId, err)
	}
	c.webcam = webcam
	c.detector = gocv.NewQRCodeDetector()
	c.frame = gocv.NewMat()
	c.points = gocv.NewMat()
	c.straight = gocv.NewMat()
	c.err = nil
	c.life.start(c.release)
	log.Debugf("video device %d opened", c.deviceId)
	return nil
}

// Close releases the device. Called from another goroutine while ScanCode
// is running, it interrupts the scan and the release happens as ScanCode
// returns.
func (c *Camera) Close() error {
	c.life.stop()
	return nil
}

func (c *Camera) release() {
	_ = c.straight.Close()
	_ = c.points.Close()
	_ = c.frame.Close()
	_ = c.detector.Close()
	if err := c.webcam.Close(); err != nil {
		log.Warnf("unable to close video device %d: %v", c.deviceId, err)
	}
	c.webcam = nil
	log.Debugf("video device %d released", c.deviceId)
}

func (c *Camera) ScanCode() bool {
	stopped, ok := c.life.begin()
	if !ok {
		return false
	}
	return c.life.end(c.scan(stopped))
}

func (c *Camera) scan(stopped <-chan struct{}) bool {
	for {
		select {
		case <-stopped:
			return false
		default:
		}

		if ok := c.webcam.Read(&c.frame); !ok {
			c.err = fmt.Errorf("video device %d closed", c.deviceId)
			return false
		}
		if c.frame.Empty() {
			continue
		}

		text := c.detector.DetectAndDecode(c.frame, &c.points, &c.straight)
		if text == "" {
			continue
		}
		now := time.Now()
		if text == c.lastCode && now.Sub(c.lastSeen) < c.cooldown {
			c.lastSeen = now
			continue
		}
		c.lastCode = text
		c.lastSeen = now
		c.code = text
		return true
	}
}

func (c *Camera) CurrentCode() string {
	return c.code
}

func (c *Camera) Err() error {
	return c.err
}

var _ capture.Device = (*Camera)(nil)
