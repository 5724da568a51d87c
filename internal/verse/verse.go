// Package verse serves the verse of the day shown on the home screen.
package verse

import "time"

// Verse is one scripture passage, quoted from the King James Version.
type Verse struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

var verses = []Verse{
	{"The LORD is my shepherd; I shall not want.", "Psalm 23:1"},
	{"Trust in the LORD with all thine heart; and lean not unto thine own understanding.", "Proverbs 3:5"},
	{"I can do all things through Christ which strengtheneth me.", "Philippians 4:13"},
	{"Be still, and know that I am God.", "Psalm 46:10"},
	{"For where two or three are gathered together in my name, there am I in the midst of them.", "Matthew 18:20"},
	{"This is the day which the LORD hath made; we will rejoice and be glad in it.", "Psalm 118:24"},
	{"Serve the LORD with gladness: come before his presence with singing.", "Psalm 100:2"},
	{"Let all your things be done with charity.", "1 Corinthians 16:14"},
	{"Bear ye one another's burdens, and so fulfil the law of Christ.", "Galatians 6:2"},
	{"Thy word is a lamp unto my feet, and a light unto my path.", "Psalm 119:105"},
	{"And let us not be weary in well doing: for in due season we shall reap, if we faint not.", "Galatians 6:9"},
	{"As every man hath received the gift, even so minister the same one to another.", "1 Peter 4:10"},
	{"Whatsoever ye do, do it heartily, as to the Lord, and not unto men.", "Colossians 3:23"},
	{"The joy of the LORD is your strength.", "Nehemiah 8:10"},
	{"Make a joyful noise unto the LORD, all ye lands.", "Psalm 100:1"},
	{"Behold, how good and how pleasant it is for brethren to dwell together in unity!", "Psalm 133:1"},
	{"Be strong and of a good courage; be not afraid.", "Joshua 1:9"},
	{"Casting all your care upon him; for he careth for you.", "1 Peter 5:7"},
	{"Let every thing that hath breath praise the LORD.", "Psalm 150:6"},
	{"Charity suffereth long, and is kind.", "1 Corinthians 13:4"},
	{"Rejoice in the Lord alway: and again I say, Rejoice.", "Philippians 4:4"},
}

// ForDate picks the verse for t's UTC calendar day. The choice is stable for
// the whole day and cycles through the list by day of year.
func ForDate(t time.Time) Verse {
	return verses[(t.UTC().YearDay()-1)%len(verses)]
}

// Today is ForDate(time.Now()).
func Today() Verse { return ForDate(time.Now()) }
