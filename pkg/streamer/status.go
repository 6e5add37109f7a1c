package streamer

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/norasector/fmstream/pkg/util"
)

type Status struct {
	Name             string  `json:"name"`
	State            string  `json:"state"`
	Frequency        int     `json:"frequency"`
	CaptureFrequency int     `json:"capture_frequency"`
	Schedule         []int   `json:"schedule"`
	ScheduleIndex    int     `json:"schedule_index"`
	ScheduleLow      int     `json:"schedule_low"`
	ScheduleHigh     int     `json:"schedule_high"`
	CaptureRate      int     `json:"capture_rate"`
	OutputRate       int     `json:"output_rate"`
	Squelch          int     `json:"squelch"`
	SquelchOpen      bool    `json:"squelch_open"`
	Level            int     `json:"level"`
	LevelMean        float64 `json:"level_mean"`
	LevelPeak        float64 `json:"level_peak"`
	Volume           float64 `json:"volume"`
	Deemphasis       float64 `json:"deemphasis"`
	RawOverwrites    uint64  `json:"raw_overwrites"`
	PCMOverwrites    uint64  `json:"pcm_overwrites"`
}

func (s *Streamer) Status() Status {
	s.mu.RLock()
	cur := s.settings
	s.mu.RUnlock()

	freq := s.controller.Frequency()
	freqs := s.schedule.Frequencies()
	low, high := util.FrequencyRange(freqs...)
	st := Status{
		Name:             s.opts.Name,
		State:            s.demod.State().String(),
		Frequency:        freq,
		CaptureFrequency: s.opts.CaptureFrequency(freq, s.plan),
		Schedule:         freqs,
		ScheduleIndex:    s.schedule.Index(),
		ScheduleLow:      low,
		ScheduleHigh:     high,
		CaptureRate:      s.plan.CaptureRate,
		OutputRate:       s.plan.OutputRate,
		Squelch:          cur.squelch,
		SquelchOpen:      s.demod.SquelchOpen(),
		Level:            s.demod.Level(),
		Volume:           cur.volume,
		Deemphasis:       cur.deemphasis,
		RawOverwrites:    s.rawSlot.Overwrites(),
		PCMOverwrites:    s.pcmSlot.Overwrites(),
	}

	if levels := s.demod.Levels(); len(levels) > 0 {
		st.LevelMean = stat.Mean(levels, nil)
		st.LevelPeak = floats.Max(levels)
	}
	return st
}
