package program

import (
	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Start(service.Service) error
	Stop() error
}

// program adapts a blocking Service to the kardianos start/stop contract.
type program struct {
	service Service
	log     *logrus.Logger
}

func New(service Service, log *logrus.Logger) *program {
	return &program{
		service: service,
		log:     log,
	}
}

func (p *program) Start(s service.Service) error {
	go p.run(s)
	return nil
}

func (p *program) Stop(s service.Service) error {
	return p.service.Stop()
}

func (p *program) run(s service.Service) {
	if err := p.service.Start(s); err != nil {
		p.log.Errorf("Служба завершилась с ошибкой: %s", err.Error())
	}
}

func Config(name, displayName, description, workDir string, args []string) *service.Config {
	return &service.Config{
		Name:             name,
		DisplayName:      displayName,
		Description:      description,
		WorkingDirectory: workDir,
		Arguments:        args,
	}
}
