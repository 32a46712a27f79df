package catalog

import "strings"

// Category 表示画廊页展示的图书分类。
type Category struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// Entry 表示分类下展示的一本书。
//
// 目录数据是静态的展示内容，与馆藏 books 表相互独立：
// 出现在目录里的书不一定有对应的馆藏记录。
type Entry struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Image  string `json:"image"`
}

var categories = []Category{
	{Name: "Mathematics", Image: "math.jpg", Description: "Books related to mathematics and problem solving."},
	{Name: "Programming", Image: "programming.webp", Description: "Coding, algorithms, and software development books."},
	{Name: "Self-help", Image: "selfhelp.jpg", Description: "Books for personal growth and motivation."},
	{Name: "Aptitude", Image: "aptitude.jpg", Description: "Books for clearing competitive exams."},
	{Name: "Physics", Image: "physics.avif", Description: "Explore Physics books here"},
	{Name: "Chemistry", Image: "chemistry.avif", Description: "Explore Chemistry books here"},
	{Name: "Electrical", Image: "electrical.jpg", Description: "Explore Electrical books here"},
	{Name: "Fiction", Image: "fiction.jpg", Description: "Explore Fiction books here"},
	{Name: "Geography", Image: "geography.png", Description: "Explore Geography books here"},
	{Name: "Mythology", Image: "mythology.jpg", Description: "Explore Mythology books here"},
	{Name: "History", Image: "history.jpg", Description: "Explore History books here"},
	{Name: "Comic", Image: "comic.png", Description: "Explore Comic books here"},
	{Name: "Fairy Tale", Image: "fairy tale.webp", Description: "Explore Fairy Tale books here"},
	{Name: "Zoology", Image: "zoology.avif", Description: "Explore Zoology books here"},
}

var entriesByCategory = map[string][]Entry{
	"mathematics": {
		{Title: "Calculus Made Easy", Author: "Silvanus P. Thompson", Image: "calculus.jpg"},
		{Title: "Linear Algebra Done Right", Author: "Sheldon Axler", Image: "linear_algebra.jpg"},
	},
	"programming": {
		{Title: "Python Crash Course", Author: "Eric Matthes", Image: "python_crash.jpg"},
		{Title: "The Complete Reference Book Java", Author: "Herbert Schildt", Image: "java.jpg"},
		{Title: "Data Science : A Modern Approach for Analytics with Python", Author: "C Sudheer Kumar", Image: "data_analytics.jpg"},
	},
	"self help": {
		{Title: "Atomic Habits", Author: "James Clear", Image: "atomic_habits.webp"},
		{Title: "The Power of Now", Author: "Eckhart Tolle", Image: "power_now.jpg"},
	},
	"aptitude": {
		{Title: "Quantitative Aptitude", Author: "R.S. Aggarwal", Image: "aptitude.jpg"},
	},
	"physics": {
		{Title: "Concepts of Physics", Author: "H.C. Verma", Image: "concepts_physics.jpg"},
	},
	"chemistry": {
		{Title: "Organic Chemistry", Author: "Paula Y. Bruice", Image: "organic_chem.jpg"},
	},
	"electrical": {
		{Title: "Basic Electrical Engineering", Author: "V.K. Mehta", Image: "electrical_basics.jpg"},
	},
	"fiction": {
		{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Image: "gatsby.jpg"},
	},
	"geography": {
		{Title: "Geography of India", Author: "Majid Husain", Image: "geography_india.jpeg"},
	},
	"mythology": {
		{Title: "Indian Mythology", Author: "Devdutt Pattanaik", Image: "indian_myth.jpg"},
	},
	"history": {
		{Title: "A People's History of the United States", Author: "Howard Zinn", Image: "us_history.jpg"},
	},
	"comic": {
		{Title: "Watchmen", Author: "Alan Moore", Image: "watchmen.webp"},
	},
	"fairy tale": {
		{Title: "Grimm's Fairy Tales", Author: "Brothers Grimm", Image: "grimm.jpg"},
	},
	"zoology": {
		{Title: "Secret world of Animals", Author: "Smithsonian", Image: "zoology_animals.jpg"},
	},
}

// Categories 返回画廊页的全部分类。
func Categories() []Category {
	return categories
}

// Normalize 把 URL 中的分类段转成目录键（"-" 还原为空格，小写）。
func Normalize(category string) string {
	return strings.ToLower(strings.ReplaceAll(category, "-", " "))
}

// Lookup 返回某个分类下的静态书单。未知分类返回空列表。
func Lookup(category string) []Entry {
	entries, ok := entriesByCategory[Normalize(category)]
	if !ok {
		return []Entry{}
	}
	return entries
}
