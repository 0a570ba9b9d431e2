package user

import (
	"github.com/trezcool/tadris/core"
)

// NewServiceMock returns a Service that sends its mails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	svc := NewService(repo, mailSvc, conf)
	svc.syncMail = true
	return svc
}

// MakeResetToken exposes the reset token of usr to the api tests.
func (svc *Service) MakeResetToken(usr User) string {
	return svc.tokens.makeToken(usr)
}
