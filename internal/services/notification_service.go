// internal/services/notification_service.go
package services

import (
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/utils"
)

// Notification types surfaced in the admin queue.
const (
	NotificationTypeSubmission  = "request_submitted"
	NotificationTypeExecuted    = "package_executed"
	NotificationTypeRemediation = "execution_remediation"
)

// NotificationService delivers licensee emails and admin queue entries.
// Delivery is best-effort: a failed email never rolls back a workflow
// transition, it is logged and the audit trail remains authoritative.
type NotificationService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	return &NotificationService{db: db, cfg: cfg}
}

// NotifySubmitted alerts the review queue and confirms receipt to the
// licensee.
func (s *NotificationService) NotifySubmitted(request *models.Request) {
	s.createAdminNotification(
		NotificationTypeSubmission,
		"New licensing request",
		fmt.Sprintf("%s submitted a request for %q.", request.LicenseeName, request.WorkTitle),
		"medium",
		request.ID,
	)

	s.sendEmail(request.LicenseeEmail, "We received your licensing request",
		fmt.Sprintf("Hi %s,\n\nYour licensing request for %q has been received and is awaiting review.\n\nYou will hear from us once the review is complete.\n\n%s",
			request.LicenseeName, request.WorkTitle, s.cfg.Email.FromName))
}

// NotifyNeedsInfo tells the licensee what the reviewer is waiting on.
func (s *NotificationService) NotifyNeedsInfo(request *models.Request, note string) {
	body := fmt.Sprintf("Hi %s,\n\nYour licensing request for %q needs additional information before review can continue.\n\nReviewer note: %s\n\n%s",
		request.LicenseeName, request.WorkTitle, note, s.cfg.Email.FromName)
	s.sendEmail(request.LicenseeEmail, "Your licensing request needs more information", body)
}

// NotifySentForSignature tells the licensee the contract is on its way.
func (s *NotificationService) NotifySentForSignature(request *models.Request) {
	body := fmt.Sprintf("Hi %s,\n\nYour licensing request for %q was approved. The license agreement (%s) has been sent to this address for electronic signature.",
		request.LicenseeName, request.WorkTitle, request.PackageReference)
	if request.PaymentRequired() {
		body += fmt.Sprintf("\n\nA payment of %.2f %s is due to complete the package.", request.AggregateFee, request.Currency)
	}
	body += "\n\n" + s.cfg.Email.FromName
	s.sendEmail(request.LicenseeEmail, "Your license agreement is ready to sign", body)
}

// NotifyExecuted announces completion to both sides.
func (s *NotificationService) NotifyExecuted(request *models.Request) {
	s.createAdminNotification(
		NotificationTypeExecuted,
		"License package executed",
		fmt.Sprintf("Package %s for %q is fully executed.", request.PackageReference, request.WorkTitle),
		"low",
		request.ID,
	)

	s.sendEmail(request.LicenseeEmail, "Your license is executed",
		fmt.Sprintf("Hi %s,\n\nYour license package %s for %q is now fully executed. The signed agreement is available from your request page.\n\n%s",
			request.LicenseeName, request.PackageReference, request.WorkTitle, s.cfg.Email.FromName))
}

// NotifyRemediation flags a negative provider event (declined signature,
// failed payment, refund) for an operator to resolve.
func (s *NotificationService) NotifyRemediation(request *models.Request, detail string) {
	s.createAdminNotification(
		NotificationTypeRemediation,
		"Execution needs attention",
		fmt.Sprintf("Request %s (%s): %s", request.ID, request.PackageReference, detail),
		"high",
		request.ID,
	)
}

// ListForAdmin returns queue entries, unread first.
func (s *NotificationService) ListForAdmin(params utils.PaginationParams) ([]models.AdminNotification, int64, error) {
	query := s.db.Model(&models.AdminNotification{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var notifications []models.AdminNotification
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return notifications, total, nil
}

// MarkRead marks a queue entry handled.
func (s *NotificationService) MarkRead(id uuid.UUID) error {
	result := s.db.Model(&models.AdminNotification{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": "read", "read_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) createAdminNotification(notifType, title, message, priority string, requestID uuid.UUID) {
	notification := &models.AdminNotification{
		Type:             notifType,
		Title:            title,
		Message:          message,
		Priority:         priority,
		RelatedRequestID: &requestID,
	}
	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create admin notification")
	}
}

func (s *NotificationService) sendEmail(to, subject, body string) {
	if s.cfg.Email.SMTPUsername == "" {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("SMTP not configured, skipping email")
		return
	}

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.cfg.Email.FromName, s.cfg.Email.FromEmail, to, subject, body)

	auth := smtp.PlainAuth("", s.cfg.Email.SMTPUsername, s.cfg.Email.SMTPPassword, s.cfg.Email.SMTPHost)
	addr := s.cfg.Email.SMTPHost + ":" + s.cfg.Email.SMTPPort

	if err := smtp.SendMail(addr, auth, s.cfg.Email.FromEmail, []string{to}, []byte(msg)); err != nil {
		logrus.WithError(err).WithField("to", to).Error("Failed to send email")
	}
}
