package intent

// Styles is the closed vocabulary recognised for change_style.
var Styles = []string{
	"mid-century modern",
	"mid-century",
	"scandinavian",
	"minimalist",
	"contemporary",
	"industrial",
	"traditional",
	"farmhouse",
	"bohemian",
	"art deco",
	"coastal",
	"japandi",
	"rustic",
	"modern",
	"boho",
}

// Colors is the closed vocabulary recognised for change_color.
var Colors = []string{
	"terracotta",
	"charcoal",
	"turquoise",
	"burgundy",
	"lavender",
	"white",
	"black",
	"beige",
	"cream",
	"green",
	"olive",
	"ivory",
	"navy",
	"sage",
	"gray",
	"grey",
	"blue",
	"teal",
	"pink",
	"red",
	"yellow",
	"orange",
	"purple",
	"brown",
	"gold",
}

// Locations are recognised for wall and opening commands.
var Locations = []string{
	"living room",
	"dining room",
	"bedroom",
	"bathroom",
	"kitchen",
	"hallway",
	"left",
	"right",
	"front",
	"back",
	"north",
	"south",
	"east",
	"west",
}

// domainTerms raise confidence; each distinct term counts once.
var domainTerms = []string{
	"wall", "window", "door", "room", "photo", "picture", "style", "color",
	"colour", "paint", "cost", "budget", "price", "timeline", "design",
	"ceiling", "floor", "kitchen", "bathroom", "bedroom", "renovation",
	"renovate", "load-bearing", "beam", "layout", "remodel",
}
