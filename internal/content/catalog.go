package content

import (
	"context"
	"fmt"
	"slices"
)

// AllCategory is the pseudo-category matching every affirmation.
const AllCategory = "all"

// Catalog is the embedded content. It implements [PoseSource] so it can
// stand in for the data service, and is the sole source for affirmations
// and sounds. The zero value is not usable; construct with [NewCatalog].
type Catalog struct {
	poses        []Pose
	affirmations []Affirmation
	sounds       []Sound
}

// NewCatalog returns the embedded catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		poses:        poseTable,
		affirmations: affirmationTable,
		sounds:       soundTable,
	}
}

// Poses returns every pose. The error is always nil; the signature satisfies
// [PoseSource].
func (c *Catalog) Poses(_ context.Context) ([]Pose, error) {
	return slices.Clone(c.poses), nil
}

// PoseByID returns the pose with the given id.
func (c *Catalog) PoseByID(_ context.Context, id string) (Pose, error) {
	for _, p := range c.poses {
		if p.ID == id {
			return p, nil
		}
	}
	return Pose{}, fmt.Errorf("pose %q not found", id)
}

// Affirmations returns affirmations in the given category. The empty string
// and [AllCategory] match everything.
func (c *Catalog) Affirmations(category string) []Affirmation {
	if category == "" || category == AllCategory {
		return slices.Clone(c.affirmations)
	}
	var out []Affirmation
	for _, a := range c.affirmations {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// AffirmationCategories returns the distinct categories, "all" first, the
// rest in first-seen order.
func (c *Catalog) AffirmationCategories() []string {
	out := []string{AllCategory}
	for _, a := range c.affirmations {
		if !slices.Contains(out, a.Category) {
			out = append(out, a.Category)
		}
	}
	return out
}

// Sounds returns every soothing sound.
func (c *Catalog) Sounds() []Sound {
	return slices.Clone(c.sounds)
}

// SoundByID returns the sound with the given id.
func (c *Catalog) SoundByID(id string) (Sound, error) {
	for _, s := range c.sounds {
		if s.ID == id {
			return s, nil
		}
	}
	return Sound{}, fmt.Errorf("sound %q not found", id)
}

var poseTable = []Pose{
	{
		ID:           "3",
		Name:         "Warrior 1",
		SanskritName: "Virabhadrasana I",
		Description:  "A standing pose that strengthens the legs and opens the hips and chest.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Strengthens legs, shoulders, and arms",
			"Opens chest, lungs, and shoulders",
			"Improves focus and balance",
			"Stretches hip flexors",
		},
		Instructions: []string{
			"Start in Mountain Pose",
			"Step one foot back about 4 feet and turn it out at a 45-degree angle",
			"Bend your front knee to a 90-degree angle, keeping it aligned with your ankle",
			"Raise your arms overhead, palms facing each other",
			"Gently arch your back and look up toward your hands",
			"Hold for 5-10 breaths",
		},
		Precautions: []string{
			"Avoid deep knee bend if you have knee injuries",
			"Those with shoulder problems should keep arms alongside the body",
			"If you have neck problems, don't look up",
		},
		ImageURL:        "/images/warrior-1.jpg",
		Category:        "Standing",
		DurationSeconds: 45,
		Tags:            []string{"beginner", "strength", "balance"},
	},
	{
		ID:           "4",
		Name:         "Warrior 2",
		SanskritName: "Virabhadrasana II",
		Description:  "A powerful standing pose that builds strength and stamina in the legs and core.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Strengthens legs, ankles, and feet",
			"Opens hips and chest",
			"Improves stamina and concentration",
			"Stretches groins, chest, lungs, and shoulders",
		},
		Instructions: []string{
			"Stand with legs 4 to 5 feet apart",
			"Turn your right foot out 90 degrees and left foot in slightly",
			"Extend your arms parallel to the floor, actively reaching through the fingertips",
			"Bend your right knee to 90 degrees, keeping it over the ankle",
			"Turn your head to gaze over your right hand",
			"Hold for 5 breaths, then switch sides",
		},
		Precautions: []string{
			"Avoid if you have hip or knee injury",
			"Keep the bent knee aligned with ankle to protect the joint",
			"If you have neck issues, look forward instead of over the hand",
		},
		ImageURL:        "/images/warrior-2.jpg",
		Category:        "Standing",
		DurationSeconds: 45,
		Tags:            []string{"beginner", "strength", "endurance"},
	},
	{
		ID:           "5",
		Name:         "Tree Pose",
		SanskritName: "Vrikshasana",
		Description:  "A balancing pose where you stand on one leg with the other foot placed on the inner thigh.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Improves balance and focus",
			"Strengthens legs and core",
			"Opens hips and stretches inner thighs",
			"Improves posture",
		},
		Instructions: []string{
			"Start in Mountain Pose",
			"Shift your weight onto your left foot",
			"Place your right foot on your left inner thigh or calf (avoid the knee)",
			"Bring your palms together at heart center or extend arms overhead",
			"Fix your gaze on a steady point for balance",
			"Hold for 5-10 breaths, then switch sides",
		},
		Precautions: []string{
			"If you have balance issues, stand near a wall for support",
			"Avoid if you have low blood pressure or migraine",
			"If you have knee issues, place foot below the knee",
		},
		ImageURL:        "/images/tree-pose.jpg",
		Category:        "Standing",
		DurationSeconds: 30,
		Tags:            []string{"beginner", "balance", "focus"},
	},
	{
		ID:           "6",
		Name:         "Triangle Pose",
		SanskritName: "Trikonasana",
		Description:  "A standing pose that stretches and strengthens the legs, hips, and spine while opening the chest.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Stretches legs, hips, spine, chest, and shoulders",
			"Strengthens thighs, knees, and ankles",
			"Improves digestion and relieves backache",
			"Reduces stress and anxiety",
		},
		Instructions: []string{
			"Stand with legs 3-4 feet apart",
			"Turn right foot out 90 degrees and left foot in slightly",
			"Extend arms parallel to the floor",
			"Reach right hand down toward the right foot, extending left arm upward",
			"Turn head to gaze at left fingertips",
			"Hold for 30-60 seconds, then switch sides",
		},
		Precautions: []string{
			"If you have low blood pressure, avoid turning head upward",
			"Those with neck problems should keep gaze forward",
			"Use a block under the lower hand if needed for comfort",
		},
		ImageURL:        "/images/Trikonasana.jpg",
		Category:        "Standing",
		DurationSeconds: 45,
		Tags:            []string{"beginner", "stretch", "alignment"},
	},
	{
		ID:           "7",
		Name:         "Child's Pose",
		SanskritName: "Balasana",
		Description:  "A restful pose that gently stretches the back, hips, thighs, and ankles.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Gently stretches lower back, hips, and thighs",
			"Calms the nervous system and reduces stress",
			"Relieves tension in the back, shoulders, and chest",
			"Promotes relaxation and steady breathing",
		},
		Instructions: []string{
			"Kneel on the floor with big toes touching, knees apart",
			"Sit back on your heels",
			"Fold forward, extending arms in front or alongside your body",
			"Rest your forehead on the floor",
			"Relax your shoulders and breathe deeply",
			"Hold for 1-3 minutes or as long as comfortable",
		},
		Precautions: []string{
			"If you have knee injuries, place a blanket under knees or between calves and thighs",
			"Pregnant women should keep knees together",
			"Those with shoulder injuries can rest arms alongside the body",
			"If you have diarrhea or are pregnant, avoid this pose",
		},
		ImageURL:        "/images/childs-pose.jpg",
		Category:        "Seated",
		DurationSeconds: 60,
		Tags:            []string{"beginner", "restorative", "relaxation"},
	},
	{
		ID:           "8",
		Name:         "Cobra Pose",
		SanskritName: "Bhujangasana",
		Description:  "A gentle backbend that strengthens the spine and opens the chest.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Strengthens the spine",
			"Opens the chest and lungs",
			"Strengthens the arms and shoulders",
			"Stimulates abdominal organs",
			"Helps relieve stress and fatigue",
		},
		Instructions: []string{
			"Lie on your stomach with hands under shoulders, elbows close to the body",
			"Press the tops of the feet, thighs, and pelvis into the floor",
			"On an inhale, straighten the arms to lift the chest off the floor",
			"Keep a slight bend in the elbows and shoulders away from the ears",
			"Lift through the sternum rather than pushing with hands",
			"Hold for 15-30 seconds, breathing easily",
		},
		Precautions: []string{
			"Avoid with back injury, headache, or carpal tunnel syndrome",
			"If pregnant, avoid after the first trimester",
			"If you have wrist issues, try using forearms instead of hands",
			"Keep the legs active to protect the lower back",
		},
		ImageURL:        "/images/cobra-pose.jpg",
		Category:        "Prone",
		DurationSeconds: 30,
		Tags:            []string{"beginner", "backbend", "strength"},
	},
	{
		ID:           "9",
		Name:         "Lord of Dance",
		SanskritName: "Paschimottanasana",
		Description:  "A seated forward bend that deeply stretches the back of the body from the heels to the head.",
		Difficulty:   DifficultyIntermediate,
		Benefits: []string{
			"Stretches hamstrings, spine, and shoulders",
			"Calms the mind and relieves stress",
			"Stimulates the liver, kidneys, and ovaries",
			"Improves digestion",
			"Helps relieve headache and fatigue",
		},
		Instructions: []string{
			"Sit with legs extended straight in front",
			"Engage your quadriceps and flex your feet",
			"Inhale, lengthen your spine",
			"Exhale and hinge at the hips to fold forward",
			"Hold your feet, ankles, or shins, wherever you can reach comfortably",
			"Hold for 1-3 minutes, breathing deeply",
		},
		Precautions: []string{
			"Avoid with lower back injuries",
			"If hamstrings are tight, bend knees slightly",
			"Sit on a folded blanket to tilt pelvis forward",
			"Focus on lengthening the spine rather than reaching the toes",
		},
		ImageURL:        "/images/seated-forward-bend.jpg",
		Category:        "Seated",
		DurationSeconds: 60,
		Tags:            []string{"intermediate", "forward bend", "flexibility"},
	},
	{
		ID:           "10",
		Name:         "Bridge Pose",
		SanskritName: "Setu Bandha Sarvangasana",
		Description:  "A gentle backbend that strengthens the spine, opens the chest, and improves spinal flexibility.",
		Difficulty:   DifficultyBeginner,
		Benefits: []string{
			"Strengthens the back, glutes, and hamstrings",
			"Opens the chest and shoulders",
			"Calms the mind and reduces anxiety",
			"Stimulates organs in the abdomen",
			"Improves digestion and circulation",
		},
		Instructions: []string{
			"Lie on your back with knees bent, feet hip-width apart",
			"Place arms alongside the body with palms down",
			"Press feet into the floor and lift the hips up",
			"Roll shoulders under and interlace fingers below hips (optional)",
			"Keep thighs and feet parallel",
			"Hold for 30-60 seconds, breathing deeply",
		},
		Precautions: []string{
			"Avoid with neck injuries or if pregnant",
			"Keep head centered, not turning to sides",
			"If shoulder mobility is limited, keep arms alongside body",
			"Place a block under sacrum for a supported version",
		},
		ImageURL:        "/images/bridge-pose.jpg",
		Category:        "Supine",
		DurationSeconds: 45,
		Tags:            []string{"beginner", "backbend", "strength"},
	},
}

var affirmationTable = []Affirmation{
	{ID: "aff-1", Text: "I am present in this moment, fully aware and at peace.", Category: "mindfulness"},
	{ID: "aff-2", Text: "I am grateful for the abundance that surrounds me.", Category: "gratitude"},
	{ID: "aff-3", Text: "I love and accept myself completely as I am right now.", Category: "self-love"},
	{ID: "aff-4", Text: "I have the courage to face any challenge with confidence.", Category: "courage"},
	{ID: "aff-5", Text: "My body is healing, and I am getting stronger every day.", Category: "self-love"},
	{ID: "aff-6", Text: "I release all tension and allow my mind to be still.", Category: "peace"},
	{ID: "aff-7", Text: "I am thankful for the opportunities that come my way today.", Category: "gratitude"},
	{ID: "aff-8", Text: "I breathe in calmness and breathe out tension.", Category: "peace"},
	{ID: "aff-9", Text: "I am aware of my thoughts without being controlled by them.", Category: "mindfulness"},
	{ID: "aff-10", Text: "I have the strength to overcome obstacles and grow from them.", Category: "courage"},
}

var soundTable = []Sound{
	{ID: "sound-1", Name: "Ocean Waves", Source: "/audio/ocean-waves.mp3", Icon: "🌊"},
	{ID: "sound-2", Name: "Gentle Rain", Source: "/audio/gentle-rain.mp3", Icon: "🌧️"},
	{ID: "sound-3", Name: "Forest Birds", Source: "/audio/forest-birds.mp3", Icon: "🐦"},
	{ID: "sound-4", Name: "Meditation Bells", Source: "/audio/meditation-bells.mp3", Icon: "🔔"},
	{ID: "sound-5", Name: "Calm Stream", Source: "/audio/calm-stream.mp3", Icon: "💧"},
}
