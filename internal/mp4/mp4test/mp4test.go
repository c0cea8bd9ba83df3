// Package mp4test writes minimal MP4 files with a GPMF metadata track and
// an optional video track, for exercising the demuxer and pipeline.
package mp4test

import (
	"fmt"
	"io"
	"os"

	gomp4 "github.com/abema/go-mp4"
)

// Track describes one track to write. All samples go into a single chunk.
type Track struct {
	TrackID   uint32
	Handler   string // "meta" or "vide"
	Entry     string // sample entry type, written as an opaque entry
	Timescale uint32
	Delta     uint32 // duration of every sample, in Timescale units
	Samples   [][]byte
}

// GPMF returns a GPMF track with one payload per sample, each lasting one
// second.
func GPMF(payloads ...[]byte) Track {
	return Track{
		TrackID:   2,
		Handler:   "meta",
		Entry:     "gpmd",
		Timescale: 1000,
		Delta:     1000,
		Samples:   payloads,
	}
}

// Video returns a video track of n one-byte frames at num/den frames per
// second.
func Video(n int, num, den uint32) Track {
	samples := make([][]byte, n)
	for i := range samples {
		samples[i] = []byte{byte(i)}
	}
	return Track{
		TrackID:   1,
		Handler:   "vide",
		Entry:     "tvid",
		Timescale: num,
		Delta:     den,
		Samples:   samples,
	}
}

// WriteFile writes tracks to a new MP4 file at path.
func WriteFile(path string, tracks ...Track) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, tracks...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes an ftyp, an mdat holding every track's samples, and a moov
// describing them.
func Write(ws io.WriteSeeker, tracks ...Track) error {
	w := gomp4.NewWriter(ws)

	brand := [4]byte{'i', 's', 'o', 'm'}
	err := box(w, gomp4.BoxTypeFtyp(), &gomp4.Ftyp{
		MajorBrand:       brand,
		CompatibleBrands: []gomp4.CompatibleBrandElem{{CompatibleBrand: brand}},
	}, nil)
	if err != nil {
		return fmt.Errorf("ftyp: %w", err)
	}

	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	offsets := make([]uint64, len(tracks))
	next := uint64(pos) + 8
	err = box(w, gomp4.BoxTypeMdat(), nil, func() error {
		for i, trk := range tracks {
			offsets[i] = next
			for _, s := range trk.Samples {
				if _, err := w.Write(s); err != nil {
					return err
				}
				next += uint64(len(s))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mdat: %w", err)
	}

	var nextID uint32
	for _, trk := range tracks {
		if trk.TrackID >= nextID {
			nextID = trk.TrackID + 1
		}
	}
	return box(w, gomp4.BoxTypeMoov(), nil, func() error {
		err := box(w, gomp4.BoxTypeMvhd(), &gomp4.Mvhd{
			Timescale:   1000,
			Rate:        0x00010000,
			Volume:      0x0100,
			NextTrackID: nextID,
		}, nil)
		if err != nil {
			return err
		}
		for i, trk := range tracks {
			if err := writeTrak(w, trk, offsets[i]); err != nil {
				return fmt.Errorf("trak %d: %w", trk.TrackID, err)
			}
		}
		return nil
	})
}

func writeTrak(w *gomp4.Writer, trk Track, offset uint64) error {
	n := uint32(len(trk.Samples))
	sizes := make([]uint32, n)
	for i, s := range trk.Samples {
		sizes[i] = uint32(len(s))
	}
	duration := n * trk.Delta

	var handler, entry [4]byte
	copy(handler[:], trk.Handler)
	copy(entry[:], trk.Entry)

	return box(w, gomp4.BoxTypeTrak(), nil, func() error {
		if err := box(w, gomp4.BoxTypeTkhd(), &gomp4.Tkhd{TrackID: trk.TrackID}, nil); err != nil {
			return err
		}
		return box(w, gomp4.BoxTypeMdia(), nil, func() error {
			err := box(w, gomp4.BoxTypeMdhd(), &gomp4.Mdhd{
				Timescale:  trk.Timescale,
				DurationV0: duration,
				Language:   [3]byte{'u', 'n', 'd'},
			}, nil)
			if err != nil {
				return err
			}
			err = box(w, gomp4.BoxTypeHdlr(), &gomp4.Hdlr{
				HandlerType: handler,
				Name:        "mp4test",
			}, nil)
			if err != nil {
				return err
			}
			return box(w, gomp4.BoxTypeMinf(), nil, func() error {
				return box(w, gomp4.BoxTypeStbl(), nil, func() error {
					return writeSampleTable(w, entry, trk.Delta, n, sizes, offset)
				})
			})
		})
	})
}

func writeSampleTable(w *gomp4.Writer, entry [4]byte, delta, n uint32, sizes []uint32, offset uint64) error {
	err := box(w, gomp4.BoxTypeStsd(), &gomp4.Stsd{EntryCount: 1}, func() error {
		return box(w, gomp4.BoxType(entry), nil, func() error {
			// SampleEntry: six reserved bytes and data_reference_index 1.
			_, err := w.Write([]byte{0, 0, 0, 0, 0, 0, 0, 1})
			return err
		})
	})
	if err != nil {
		return err
	}
	err = box(w, gomp4.BoxTypeStts(), &gomp4.Stts{
		EntryCount: 1,
		Entries:    []gomp4.SttsEntry{{SampleCount: n, SampleDelta: delta}},
	}, nil)
	if err != nil {
		return err
	}
	err = box(w, gomp4.BoxTypeStsc(), &gomp4.Stsc{
		EntryCount: 1,
		Entries:    []gomp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: n, SampleDescriptionIndex: 1}},
	}, nil)
	if err != nil {
		return err
	}
	err = box(w, gomp4.BoxTypeStsz(), &gomp4.Stsz{
		SampleCount: n,
		EntrySize:   sizes,
	}, nil)
	if err != nil {
		return err
	}
	return box(w, gomp4.BoxTypeStco(), &gomp4.Stco{
		EntryCount:  1,
		ChunkOffset: []uint32{uint32(offset)},
	}, nil)
}

// box writes one box: its header, the marshaled payload if any, then
// whatever children writes.
func box(w *gomp4.Writer, typ gomp4.BoxType, payload gomp4.IImmutableBox, children func() error) error {
	if _, err := w.StartBox(&gomp4.BoxInfo{Type: typ}); err != nil {
		return err
	}
	if payload != nil {
		if _, err := gomp4.Marshal(w, payload, gomp4.Context{}); err != nil {
			return err
		}
	}
	if children != nil {
		if err := children(); err != nil {
			return err
		}
	}
	_, err := w.EndBox()
	return err
}
