package usecase

import drepo "FinFuse/internal/domain/repository"

type sourceList []*fakeSource

func (s sourceList) sources() []drepo.Source {
	out := make([]drepo.Source, len(s))
	for i, src := range s {
		out[i] = src
	}
	return out
}
