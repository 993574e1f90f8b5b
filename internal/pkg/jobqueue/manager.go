package jobqueue

import (
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/greenfoldhq/greenfold/internal/pkg/env"
)

// Manager manages the global job queue
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "3")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue: NewQueue(workerCount),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true

	log.Info("[JobQueue] Manager starting")
	m.queue.Start()
}

// Stop stops the job queue workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	m.queue.Stop()
	log.Info("[JobQueue] Manager stopped")
}

// IsRunning reports whether the manager has been started
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// EnqueueNotification queues a notification for asynchronous delivery.
func EnqueueNotification(userID uint, notificationType, content string, referenceID uint) error {
	payload := NotificationJobPayload{
		UserID:      userID,
		Type:        notificationType,
		Content:     content,
		ReferenceID: referenceID,
	}
	_, err := GetManager().GetQueue().EnqueueJob(JobTypeNotificationDispatch, payload.ToMap())
	return err
}

// EnqueueBillingMail queues a billing notice mail for one recipient.
func EnqueueBillingMail(to, name, organization, subject, template string) error {
	payload := MailJobPayload{
		To:       to,
		Subject:  subject,
		Template: template,
		Data: map[string]string{
			"name":         name,
			"organization": organization,
		},
	}
	_, err := GetManager().GetQueue().EnqueueJob(JobTypeMailSend, payload.ToMap())
	return err
}

// EnqueueActivationMail queues the account activation mail.
func EnqueueActivationMail(to, name, token string) error {
	payload := MailJobPayload{
		To:       to,
		Subject:  "Activate your GreenFold account",
		Template: "activation",
		Data: map[string]string{
			"name":  name,
			"token": token,
		},
	}
	_, err := GetManager().GetQueue().EnqueueJob(JobTypeMailSend, payload.ToMap())
	return err
}
