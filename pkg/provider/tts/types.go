package tts

import "github.com/MrWong99/barkeep/pkg/types"

// VoiceProfile is shared with the HTTP layer through pkg/types.
type VoiceProfile = types.VoiceProfile
