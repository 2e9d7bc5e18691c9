package profile

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"

	"bagify-server/modules/common/model"
)

// ErrIncompleteReferences - 4개 슬롯이 모두 채워지지 않음
var ErrIncompleteReferences = errors.New("all four reference images are required")

// Profiles - 한 세션에서 한 번만 추출되는 프로필 묶음
type Profiles struct {
	Character CharacterProfile `json:"character"`
	SceneA    SceneProfile     `json:"sceneA"`
	SceneB    SceneProfile     `json:"sceneB"`
}

// LockedReferences is the frozen copy of the reference images taken when
// profiles were extracted. It can only be produced by ExtractAll.
type LockedReferences struct {
	frames [model.FrameCount]model.Image
}

// Frame returns a copy of the locked image for a slot.
func (l *LockedReferences) Frame(slot model.Slot) model.Image {
	for i, s := range model.Slots {
		if s == slot {
			return l.frames[i].Clone()
		}
	}
	return model.Image{}
}

// ExtractAll - character(frame1), scene A(frame1), scene B(frame4) 동시 추출
// Any failure returns no profiles and no snapshot.
func (e *Extractor) ExtractAll(ctx context.Context, refs *model.ReferenceImageSet) (*Profiles, *LockedReferences, error) {
	if refs == nil || !refs.IsUploadComplete() {
		return nil, nil, ErrIncompleteReferences
	}

	locked := &LockedReferences{}
	for i, slot := range model.Slots {
		locked.frames[i] = refs.Get(slot).Clone()
	}
	frame1 := locked.Frame(model.SlotFrame1)
	frame4 := locked.Frame(model.SlotFrame4)

	log.Printf("🔍 [Profile] Extracting character + 2 scene profiles in parallel")

	var profiles Profiles
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p, err := e.ExtractCharacter(egCtx, frame1)
		if err != nil {
			return err
		}
		profiles.Character = p
		return nil
	})
	eg.Go(func() error {
		p, err := e.ExtractSceneA(egCtx, frame1)
		if err != nil {
			return err
		}
		profiles.SceneA = p
		return nil
	})
	eg.Go(func() error {
		p, err := e.ExtractSceneB(egCtx, frame4)
		if err != nil {
			return err
		}
		profiles.SceneB = p
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Printf("❌ [Profile] Extraction failed: %v", err)
		return nil, nil, err
	}

	log.Printf("✅ [Profile] Profiles extracted and references locked")
	return &profiles, locked, nil
}
