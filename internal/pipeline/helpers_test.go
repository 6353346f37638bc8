package pipeline

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/nao1215/proxyscan/internal/model"
	"github.com/nao1215/proxyscan/internal/probe"
)

// proberFunc adapts a function to the Prober interface.
type proberFunc func(ctx context.Context, c model.Candidate) model.ProbeOutcome

// Probe implements Prober.
func (f proberFunc) Probe(ctx context.Context, c model.Candidate) model.ProbeOutcome {
	return f(ctx, c)
}

// validate returns a success outcome whose country is the candidate's.
func validate(c model.Candidate) model.ProbeOutcome {
	return model.Success(c, model.ProxyResult{
		Proxy:          c.Address,
		Port:           c.Port,
		IP:             "203.0.113.1",
		Country:        c.Country,
		ASOrganization: "Relay " + c.Org,
	})
}

// validateAll validates every candidate.
var validateAll = proberFunc(func(_ context.Context, c model.Candidate) model.ProbeOutcome {
	return validate(c)
})

// refuseAll fails every candidate with a connection error.
var refuseAll = proberFunc(func(_ context.Context, c model.Candidate) model.ProbeOutcome {
	return model.Failure(c, probe.ErrConnection)
})

// quietLogger returns a logger that drops everything.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// candidate builds a candidate.
func candidate(addr string, port uint16, country, org string) model.Candidate {
	return model.Candidate{Address: addr, Port: port, Country: country, Org: org}
}
