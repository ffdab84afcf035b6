package constant

const (
	DesignPromptV1 = `Analyze the attached photo of a room. Based on its layout, dimensions and lighting, produce three distinct and complete interior design concepts. The concepts must be: 1. Modern and Minimalist, 2. Vintage or Rustic, 3. Industrial or Nordic.
For each concept provide a style name, a detailed description, a list of suitable furniture and a detailed prompt for an image generation model that visualizes the transformed room. The image prompt must be extremely descriptive and must instruct the model to keep the original architecture of the room (windows, doors, layout) while applying the new style.
%s
Respond with a JSON value that strictly follows the provided schema.`

	DesignPreferencesTemplateV1 = `User preferences:
- Color palette: %s
- Budget / furniture type: %s
- Materials: %s`

	NoPreference = "No preference"

	PalettePromptV1 = `Analyze the colors in the attached photo of a room.
Generate 3 distinct, harmonious color palettes inspired by the photo.
For each palette provide a creative name and an array of 5 HEX color codes that work well together for interior design.
Respond with a JSON value that strictly follows the provided schema.`

	StoreSearchPromptV1 = `Find 3 online stores where I can buy a "%s". Prioritize stores that match a "%s" furniture preference. For each one give the store name and a direct URL. If possible, mention whether they have physical locations using Google Maps data. Format the answer as a simple list.`

	// Prefix for every Imagen prompt.
	ImagePromptPrefix = "Photorealistic interior design photo: "

	// Appended to a design's source prompt to move the camera.
	PerspectivePromptTemplate = "%s, shown from a %s perspective."

	GeneratingMessage = "Creating your dream room... This can take a few minutes."

	ChatGreeting = "Hi! How can I help with your interior design project today?"
	ChatApology  = "Sorry, I'm having trouble connecting right now."
)

// User-facing failure messages stored in the workflow's last error.
const (
	ErrMessageParse       = "The design service returned an unexpected answer. Please try again."
	ErrMessageGeneration  = "Image generation failed."
	ErrMessageEdit        = "Failed to edit the image."
	ErrMessageService     = "The design service is unavailable right now. Please try again."
	ErrMessagePalettes    = "Failed to generate color palettes."
	ErrMessageUnknown     = "An unknown error occurred."
	ErrMessagePerspective = "Failed to load the %s view."
)

// Websocket push message types.
const (
	PushTypeWorkflowState = "workflow_state"
	PushTypePerspective   = "perspective"
	PushTypeChat          = "chat"
)
